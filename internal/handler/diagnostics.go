package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wpp-platform/customer-service/internal/service"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

// DiagnosticsHandler exposes operator checks of the external integrations.
type DiagnosticsHandler struct {
	service *service.DiagnosticsService
	logger  *logger.Logger
}

// NewDiagnosticsHandler creates a new diagnostics handler.
func NewDiagnosticsHandler(svc *service.DiagnosticsService, log *logger.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		service: svc,
		logger:  log,
	}
}

// Routes returns the diagnostics routes.
func (h *DiagnosticsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/ai", h.TestAI)
	r.Post("/whatsapp", h.TestWhatsApp)
	return r
}

type testAIRequest struct {
	Message string `json:"message"`
}

// TestAI handles POST /api/v1/diagnostics/ai
func (h *DiagnosticsHandler) TestAI(w http.ResponseWriter, r *http.Request) {
	var req testAIRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	res, err := h.service.TestAI(r.Context(), req.Message)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type testWhatsAppRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

// TestWhatsApp handles POST /api/v1/diagnostics/whatsapp
func (h *DiagnosticsHandler) TestWhatsApp(w http.ResponseWriter, r *http.Request) {
	var req testWhatsAppRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	res, err := h.service.TestWhatsApp(r.Context(), req.PhoneNumber, req.Message)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
