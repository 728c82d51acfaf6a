package model

// Sentiment is the polarity of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// SentimentResult is the outcome of sentiment analysis.
type SentimentResult struct {
	Sentiment  Sentiment `json:"sentiment"`
	Confidence float64   `json:"confidence"`
	Emotions   []string  `json:"emotions"`
}

// Intent is what the sender wants.
type Intent string

const (
	IntentGreeting   Intent = "greeting"
	IntentQuestion   Intent = "question"
	IntentComplaint  Intent = "complaint"
	IntentCompliment Intent = "compliment"
	IntentGoodbye    Intent = "goodbye"
	IntentHelp       Intent = "help"
	IntentOther      Intent = "other"
)

// IsKnown reports whether i is one of the defined intents.
func (i Intent) IsKnown() bool {
	switch i {
	case IntentGreeting, IntentQuestion, IntentComplaint, IntentCompliment,
		IntentGoodbye, IntentHelp, IntentOther:
		return true
	}
	return false
}

// IntentResult is the outcome of intent extraction. Entities are labelled
// "kind:value", e.g. "email:ana@example.com".
type IntentResult struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   []string `json:"entities"`
}
