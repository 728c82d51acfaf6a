package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wpp-platform/customer-service/internal/middleware"
	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/service"
	"github.com/wpp-platform/customer-service/internal/whatsapp"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	service *service.MessageService
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: svc,
		logger:  log,
	}
}

type sendMessageRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
	Deliver     bool   `json:"deliver"`
}

type sendMessageResponse struct {
	Message           *model.Message `json:"message"`
	WhatsAppMessageID string         `json:"whatsapp_message_id,omitempty"`
}

// Routes returns the message routes.
func (h *MessageHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/send", h.Send)
	r.Post("/template", h.SendTemplate)
	r.Post("/interactive", h.SendInteractive)
	r.Get("/unprocessed", h.Unprocessed)
	r.Get("/media/{mediaID}", h.Media)
	r.With(middleware.ValidIDParam("id")).Post("/process/{id}", h.Process)
	r.With(middleware.ValidIDParam("id")).Get("/conversation/{id}", h.ListByConversation)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(middleware.ValidIDParam("id"))
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
	})
	return r
}

// Send handles POST /api/v1/messages/send
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	msg, err := h.service.SendMessage(ctx, req.PhoneNumber, req.Message)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := sendMessageResponse{Message: msg}
	if req.Deliver {
		result, err := h.service.Deliver(ctx, msg)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		resp.WhatsAppMessageID = result.MessageID
	}

	writeJSON(w, http.StatusCreated, resp)
}

// SendTemplate handles POST /api/v1/messages/template
func (h *MessageHandler) SendTemplate(w http.ResponseWriter, r *http.Request) {
	var req service.TemplateInput
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	msg, result, err := h.service.SendTemplate(r.Context(), req)
	h.writeSent(w, r, msg, result, err)
}

// SendInteractive handles POST /api/v1/messages/interactive
func (h *MessageHandler) SendInteractive(w http.ResponseWriter, r *http.Request) {
	var req service.InteractiveInput
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	msg, result, err := h.service.SendInteractive(r.Context(), req)
	h.writeSent(w, r, msg, result, err)
}

func (h *MessageHandler) writeSent(w http.ResponseWriter, r *http.Request, msg *model.Message, result *whatsapp.SendResult, err error) {
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sendMessageResponse{Message: msg, WhatsAppMessageID: result.MessageID})
}

// Process handles POST /api/v1/messages/process/{id}
func (h *MessageHandler) Process(w http.ResponseWriter, r *http.Request) {
	verdict, err := h.service.ProcessByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

// ListByConversation handles GET /api/v1/messages/conversation/{id}
func (h *MessageHandler) ListByConversation(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	msgs, err := h.service.ListByConversation(r.Context(), chi.URLParam(r, "id"), skip, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

// Unprocessed handles GET /api/v1/messages/unprocessed
func (h *MessageHandler) Unprocessed(w http.ResponseWriter, r *http.Request) {
	_, limit := pagination(r)

	msgs, err := h.service.ListUnprocessed(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

// Media handles GET /api/v1/messages/media/{mediaID}
func (h *MessageHandler) Media(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Media(r.Context(), chi.URLParam(r, "mediaID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Get handles GET /api/v1/messages/{id}
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	msg, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// Delete handles DELETE /api/v1/messages/{id}
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
