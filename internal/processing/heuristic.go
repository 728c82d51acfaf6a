package processing

import (
	"context"
	"strings"

	"github.com/wpp-platform/customer-service/internal/model"
)

// Heuristic is the keyword-based Service. It makes no network calls and is
// the fallback for the LLM-backed implementation.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

// AnalyzeSentiment counts the positive and negative keywords present in the
// text; the larger count wins and ties are neutral.
func (h *Heuristic) AnalyzeSentiment(_ context.Context, text string) model.SentimentResult {
	lower := strings.ToLower(text)
	pos := countPresent(lower, positiveWords)
	neg := countPresent(lower, negativeWords)

	result := model.SentimentResult{
		Sentiment:  model.SentimentNeutral,
		Confidence: 0.5,
		Emotions:   detectEmotions(lower),
	}
	switch {
	case pos > neg:
		result.Sentiment = model.SentimentPositive
		result.Confidence = confidence(pos)
	case neg > pos:
		result.Sentiment = model.SentimentNegative
		result.Confidence = confidence(neg)
	}
	return result
}

// ExtractIntent returns the first intent, in fixed order, with a keyword
// present in the text.
func (h *Heuristic) ExtractIntent(_ context.Context, text string) model.IntentResult {
	lower := strings.ToLower(text)
	result := model.IntentResult{
		Intent:     model.IntentOther,
		Confidence: 0.5,
		Entities:   extractEntities(text),
	}
	for _, set := range intentKeywords {
		if n := countPresent(lower, set.words); n > 0 {
			result.Intent = set.key
			result.Confidence = confidence(n)
			break
		}
	}
	return result
}

// ShouldEscalate checks, in order: escalation keywords, two or more strongly
// negative words, a long history, and a conversation already with a human.
func (h *Heuristic) ShouldEscalate(_ context.Context, msg *model.Message, conv *model.Conversation, history []*model.Message) bool {
	lower := strings.ToLower(msg.DisplayText())
	if countPresent(lower, escalationKeywords) > 0 {
		return true
	}
	if countPresent(lower, escalationNegativeWords) >= 2 {
		return true
	}
	if len(history) > escalationHistoryLimit {
		return true
	}
	if conv != nil {
		switch conv.Status.Kind {
		case model.StatusTransferred, model.StatusEscalated:
			return true
		}
	}
	return false
}

// GenerateResponse maps the message intent to a canned reply.
func (h *Heuristic) GenerateResponse(ctx context.Context, msg *model.Message, _ *model.Conversation, _ []*model.Message) string {
	return CannedResponse(h.ExtractIntent(ctx, msg.DisplayText()).Intent)
}

// CannedResponse returns the fixed reply for an intent.
func CannedResponse(intent model.Intent) string {
	if r, ok := cannedResponses[intent]; ok {
		return r
	}
	return cannedResponses[model.IntentOther]
}

func countPresent(lower string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			n++
		}
	}
	return n
}

func detectEmotions(lower string) []string {
	emotions := []string{}
	for _, set := range emotionKeywords {
		if countPresent(lower, set.words) > 0 {
			emotions = append(emotions, set.key)
		}
	}
	return emotions
}

func extractEntities(text string) []string {
	entities := []string{}
	for _, p := range entityPatterns {
		for _, m := range p.re.FindAllString(text, -1) {
			entities = append(entities, p.kind+":"+m)
		}
	}
	return entities
}
