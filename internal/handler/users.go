package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wpp-platform/customer-service/internal/middleware"
	"github.com/wpp-platform/customer-service/internal/service"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

// UserHandler handles user endpoints.
type UserHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc *service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: svc,
		logger:  log,
	}
}

// Routes returns the user routes.
func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/phone/{phone}", h.GetByPhone)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(middleware.ValidIDParam("id"))
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
	})
	return r
}

// Create handles POST /api/v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserInput
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	user, _, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	users, err := h.service.List(r.Context(), skip, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// GetByPhone handles GET /api/v1/users/phone/{phone}
func (h *UserHandler) GetByPhone(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByPhone(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Update handles PUT /api/v1/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateUserInput
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	user, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Delete handles DELETE /api/v1/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
