package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/service"
	"github.com/wpp-platform/customer-service/internal/whatsapp"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

const maxWebhookBody = 1 << 20

// WebhookHandler handles the WhatsApp webhook.
type WebhookHandler struct {
	service     *service.WebhookService
	verifyToken string
	appSecret   string
	logger      *logger.Logger
}

// NewWebhookHandler creates a new webhook handler. An empty appSecret
// disables signature verification.
func NewWebhookHandler(svc *service.WebhookService, verifyToken, appSecret string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:     svc,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		logger:      log,
	}
}

// Routes returns the webhook routes.
func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Verify)
	r.Post("/", h.Receive)
	return r
}

// Verify handles GET /webhook
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || h.verifyToken == "" || q.Get("hub.verify_token") != h.verifyToken {
		writeError(w, http.StatusForbidden, "verification failed")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, q.Get("hub.challenge"))
}

// Receive handles POST /webhook
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx, h.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if h.appSecret != "" && !whatsapp.ValidSignature(body, r.Header.Get(whatsapp.SignatureHeader), h.appSecret) {
		log.Warn("webhook signature mismatch")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	res := h.service.Handle(ctx, &payload)
	if res.Received > 0 {
		log.Info("webhook handled",
			zap.Int("received", res.Received),
			zap.Int("stored", res.Stored),
			zap.Int("duplicates", res.Duplicates),
			zap.Int("failed", res.Failed),
		)
	}

	if res.Retryable > 0 {
		// Stored messages come back as duplicates on redelivery.
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "error",
			"error":    "failed to store inbound messages",
			"received": res.Received,
			"stored":   res.Stored,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"received": res.Received,
		"stored":   res.Stored,
	})
}
