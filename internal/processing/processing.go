// Package processing decides, for one inbound message, its sentiment and
// intent, whether a human agent must take over, and what to reply.
package processing

import (
	"context"

	"github.com/wpp-platform/customer-service/internal/model"
)

// Service is the message processing capability. Implementations never fail:
// every method degrades to a safe default instead of returning an error.
type Service interface {
	AnalyzeSentiment(ctx context.Context, text string) model.SentimentResult
	ExtractIntent(ctx context.Context, text string) model.IntentResult
	ShouldEscalate(ctx context.Context, msg *model.Message, conv *model.Conversation, history []*model.Message) bool
	GenerateResponse(ctx context.Context, msg *model.Message, conv *model.Conversation, history []*model.Message) string
}

// MaxHistoryTurns bounds the history passed to response generation.
const MaxHistoryTurns = 10

// escalationHistoryLimit is the history length above which a conversation
// is handed to a human.
const escalationHistoryLimit = 20

// HistoryWindow is how many prior messages callers load for a verdict:
// enough to evaluate the history rule.
const HistoryWindow = escalationHistoryLimit + 1

type sentimentKey struct{}

// WithSentiment attaches the sentiment already computed for the message
// being evaluated. ShouldEscalate reuses it instead of analyzing the text
// again.
func WithSentiment(ctx context.Context, sentiment model.SentimentResult) context.Context {
	return context.WithValue(ctx, sentimentKey{}, sentiment)
}

func sentimentFromContext(ctx context.Context) (model.SentimentResult, bool) {
	s, ok := ctx.Value(sentimentKey{}).(model.SentimentResult)
	return s, ok
}

func confidence(matches int) float64 {
	c := 0.5 + 0.1*float64(matches)
	if c > 0.9 {
		return 0.9
	}
	return c
}
