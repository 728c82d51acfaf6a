package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wpp-platform/customer-service/internal/middleware"
	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/service"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

type statusChangeRequest struct {
	Reason  string `json:"reason"`
	AgentID string `json:"agent_id"`
}

// Routes returns the conversation routes.
func (h *ConversationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(middleware.ValidIDParam("id"))
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Get("/messages", h.Messages)
		r.Post("/close", h.Close)
		r.Post("/activate", h.Activate)
		r.Post("/transfer", h.Transfer)
		r.Post("/escalate", h.Escalate)
		r.Post("/wait", h.Wait)
	})
	return r
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	convs, err := h.service.List(r.Context(), r.URL.Query().Get("status"), skip, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, convs)
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Messages handles GET /api/v1/conversations/{id}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	msgs, err := h.service.Messages(r.Context(), chi.URLParam(r, "id"), skip, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

// Close handles POST /api/v1/conversations/{id}/close
func (h *ConversationHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, func(req statusChangeRequest) (*model.Conversation, error) {
		return h.service.Close(r.Context(), chi.URLParam(r, "id"), req.Reason)
	})
}

// Activate handles POST /api/v1/conversations/{id}/activate
func (h *ConversationHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, func(statusChangeRequest) (*model.Conversation, error) {
		return h.service.Activate(r.Context(), chi.URLParam(r, "id"))
	})
}

// Transfer handles POST /api/v1/conversations/{id}/transfer
func (h *ConversationHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, func(req statusChangeRequest) (*model.Conversation, error) {
		return h.service.Transfer(r.Context(), chi.URLParam(r, "id"), req.AgentID, req.Reason)
	})
}

// Escalate handles POST /api/v1/conversations/{id}/escalate
func (h *ConversationHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, func(req statusChangeRequest) (*model.Conversation, error) {
		return h.service.Escalate(r.Context(), chi.URLParam(r, "id"), req.Reason)
	})
}

// Wait handles POST /api/v1/conversations/{id}/wait
func (h *ConversationHandler) Wait(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, func(statusChangeRequest) (*model.Conversation, error) {
		return h.service.WaitForAgent(r.Context(), chi.URLParam(r, "id"), "")
	})
}

// Delete handles DELETE /api/v1/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// change decodes an optional status change body and applies fn.
func (h *ConversationHandler) change(w http.ResponseWriter, r *http.Request, fn func(statusChangeRequest) (*model.Conversation, error)) {
	var req statusChangeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
	}

	conv, err := fn(req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}
