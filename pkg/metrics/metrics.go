// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebhookMessagesTotal counts inbound webhook messages by type and outcome.
	WebhookMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_messages_total",
			Help: "Inbound WhatsApp messages by type and intake outcome",
		},
		[]string{"type", "outcome"},
	)

	// MessagesStoredTotal counts persisted messages.
	MessagesStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_stored_total",
			Help: "Messages persisted",
		},
		[]string{"direction"},
	)

	// ConversationsCreatedTotal counts conversations opened.
	ConversationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_created_total",
			Help: "Conversations created",
		},
	)

	// VerdictsTotal counts processing verdicts.
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processing_verdicts_total",
			Help: "Processing verdicts by intent, sentiment and escalation",
		},
		[]string{"intent", "sentiment", "escalate"},
	)

	// LLMRequestDuration tracks LLM completion latency.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"provider", "operation", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"provider", "direction"},
	)

	// WhatsAppRequestsTotal counts Graph API calls.
	WhatsAppRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_requests_total",
			Help: "WhatsApp Business API calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	// EventsPublishedTotal counts domain events sent to NATS.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events published",
		},
		[]string{"type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordWebhookMessage records the intake outcome of one inbound message:
// stored, duplicate, invalid or failed.
func RecordWebhookMessage(msgType, outcome string) {
	WebhookMessagesTotal.WithLabelValues(msgType, outcome).Inc()
}

// RecordVerdict records a processing verdict.
func RecordVerdict(intent, sentiment string, escalate bool) {
	VerdictsTotal.WithLabelValues(intent, sentiment, strconv.FormatBool(escalate)).Inc()
}

// RecordLLMCall records metrics for an LLM completion.
func RecordLLMCall(provider, operation, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(provider, operation, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
}

// RecordWhatsAppRequest records a Graph API call.
func RecordWhatsAppRequest(operation string, err error) {
	WhatsAppRequestsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
}

// RecordEvent records a publish attempt.
func RecordEvent(eventType string, err error) {
	EventsPublishedTotal.WithLabelValues(eventType, statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
