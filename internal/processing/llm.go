package processing

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/llm"
	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/pkg/logger"
	"github.com/wpp-platform/customer-service/pkg/metrics"
)

const systemPrompt = `Você é um assistente virtual especializado em atendimento ao cliente via WhatsApp.
Suas características:

1. Seja sempre cordial, prestativo e profissional
2. Responda de forma clara e concisa
3. Use linguagem natural e amigável
4. Se não souber algo, seja honesto e ofereça alternativas
5. Mantenha o foco em resolver o problema do cliente
6. Use emojis moderadamente para tornar a conversa mais amigável
7. Seja proativo em oferecer ajuda adicional

Diretrizes específicas:
- Sempre cumprimente o cliente de forma calorosa
- Identifique a necessidade do cliente rapidamente
- Ofereça soluções práticas e específicas
- Se necessário, peça mais informações de forma educada
- Encerre conversas de forma positiva

Responda sempre em português brasileiro.`

const sentimentPrompt = `Analise o sentimento do texto e retorne apenas um JSON com: ` +
	`sentiment (positive/negative/neutral), confidence (0-1), emotions (lista de emoções detectadas)`

const intentPrompt = `Analise o texto e identifique a intenção do usuário. ` +
	`Retorne apenas um JSON com: intent (greeting/question/complaint/compliment/goodbye/help/other), ` +
	`entities (lista de entidades mencionadas), confidence (0-1)`

// escalationSentimentThreshold is the negative-sentiment confidence above
// which the LLM service escalates regardless of keywords.
const escalationSentimentThreshold = 0.8

// LLMConfig tunes the completion calls.
type LLMConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// LLMService is a Service backed by an llm.Client. Every failure falls back
// to the Heuristic result or to ApologyResponse.
type LLMService struct {
	client   llm.Client
	fallback *Heuristic
	cfg      LLMConfig
	logger   *logger.Logger
}

func NewLLMService(client llm.Client, cfg LLMConfig, log *logger.Logger) *LLMService {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &LLMService{
		client:   client,
		fallback: NewHeuristic(),
		cfg:      cfg,
		logger:   log.Named("llm"),
	}
}

func (s *LLMService) GenerateResponse(ctx context.Context, msg *model.Message, conv *model.Conversation, history []*model.Message) string {
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}

	messages := make([]llm.ChatMessage, 0, len(history)+1)
	for _, h := range history {
		role := llm.RoleAssistant
		if h.IsIncoming() {
			role = llm.RoleUser
		}
		messages = append(messages, llm.ChatMessage{Role: role, Content: h.DisplayText()})
	}
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: msg.DisplayText()})

	var convCtx map[string]any
	if conv != nil {
		convCtx = conv.Context
	}

	resp, err := s.complete(ctx, "reply", &llm.CompletionRequest{
		Model:       s.cfg.Model,
		System:      buildSystemPrompt(convCtx),
		Messages:    messages,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		s.logger.Warn("reply generation failed", zap.String("message_id", msg.ID), zap.Error(err))
		return ApologyResponse
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return ApologyResponse
	}
	return reply
}

func (s *LLMService) AnalyzeSentiment(ctx context.Context, text string) model.SentimentResult {
	var out model.SentimentResult
	if err := s.completeJSON(ctx, "sentiment", sentimentPrompt, text, 100, &out); err != nil {
		s.logger.Warn("sentiment analysis failed, using heuristic", zap.Error(err))
		return s.fallback.AnalyzeSentiment(ctx, text)
	}

	switch out.Sentiment {
	case model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral:
	default:
		return s.fallback.AnalyzeSentiment(ctx, text)
	}
	out.Confidence = clamp01(out.Confidence)
	if out.Emotions == nil {
		out.Emotions = []string{}
	}
	return out
}

func (s *LLMService) ExtractIntent(ctx context.Context, text string) model.IntentResult {
	var out model.IntentResult
	if err := s.completeJSON(ctx, "intent", intentPrompt, text, 150, &out); err != nil {
		s.logger.Warn("intent extraction failed, using heuristic", zap.Error(err))
		return s.fallback.ExtractIntent(ctx, text)
	}

	if !out.Intent.IsKnown() {
		out.Intent = model.IntentOther
	}
	out.Confidence = clamp01(out.Confidence)
	if out.Entities == nil {
		out.Entities = []string{}
	}
	return out
}

// ShouldEscalate applies the heuristic rules and additionally escalates on
// strongly negative sentiment. A sentiment attached with WithSentiment is
// used as is; otherwise the message is analyzed here.
func (s *LLMService) ShouldEscalate(ctx context.Context, msg *model.Message, conv *model.Conversation, history []*model.Message) bool {
	if s.fallback.ShouldEscalate(ctx, msg, conv, history) {
		return true
	}
	sentiment, ok := sentimentFromContext(ctx)
	if !ok {
		sentiment = s.AnalyzeSentiment(ctx, msg.DisplayText())
	}
	return sentiment.Sentiment == model.SentimentNegative && sentiment.Confidence > escalationSentimentThreshold
}

func (s *LLMService) complete(ctx context.Context, op string, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.Complete(ctx, req)
	status := "ok"
	tokensIn, tokensOut := 0, 0
	if err != nil {
		status = "error"
	} else {
		tokensIn, tokensOut = resp.TokensIn, resp.TokensOut
	}
	metrics.RecordLLMCall(s.client.Name(), op, status, time.Since(start).Seconds(), tokensIn, tokensOut)
	return resp, err
}

func (s *LLMService) completeJSON(ctx context.Context, op, prompt, text string, maxTokens int, out any) error {
	resp, err := s.complete(ctx, op, &llm.CompletionRequest{
		Model:       s.cfg.Model,
		System:      prompt,
		Messages:    []llm.ChatMessage{{Role: llm.RoleUser, Content: text}},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(extractJSONObject(resp.Content)), out)
}

func buildSystemPrompt(convCtx map[string]any) string {
	if len(convCtx) == 0 {
		return systemPrompt
	}
	data, err := json.Marshal(convCtx)
	if err != nil {
		return systemPrompt
	}
	return systemPrompt + "\n\nInformações do contexto:\n" + string(data)
}

// extractJSONObject trims prose or code fences around the first JSON object.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
