package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wpp-platform/customer-service/internal/service"
	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

// AnalyticsHandler handles dashboard endpoints.
type AnalyticsHandler struct {
	service *service.AnalyticsService
	logger  *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(svc *service.AnalyticsService, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: svc,
		logger:  log,
	}
}

// Routes returns the analytics routes.
func (h *AnalyticsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/overview", h.Overview)
	r.Get("/message-trends", h.MessageTrends)
	r.Get("/conversation-metrics", h.ConversationMetrics)
	return r
}

// Overview handles GET /api/v1/analytics/overview
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, overview)
}

// MessageTrends handles GET /api/v1/analytics/message-trends
func (h *AnalyticsHandler) MessageTrends(w http.ResponseWriter, r *http.Request) {
	days := service.DefaultTrendDays
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 || parsed > service.MaxTrendDays {
			writeServiceError(w, r, h.logger, apperrors.Validation("days", "must be between 1 and %d", service.MaxTrendDays))
			return
		}
		days = parsed
	}

	trends, err := h.service.MessageTrends(r.Context(), days)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"days":   days,
		"trends": trends,
	})
}

// ConversationMetrics handles GET /api/v1/analytics/conversation-metrics
func (h *AnalyticsHandler) ConversationMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.ConversationMetrics(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}
