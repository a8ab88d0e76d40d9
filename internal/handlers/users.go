package handlers

import (
	"net/http"

	"github.com/fittrack/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserHandler serves admin account management.
type UserHandler struct {
	users *services.UserService
	log   *zap.Logger
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users *services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: orNop(log).Named("users")}
}

// UserRouter registers admin user routes on the given router.
func UserRouter(r chi.Router, handler *UserHandler, requireAuth, requireAdmin func(http.Handler) http.Handler) {
	r.Use(requireAuth, requireAdmin)
	r.Get("/", handler.List)
	r.Patch("/{userID}/active", handler.SetActive)
	r.Delete("/{userID}", handler.Delete)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.users.SetActive(r.Context(), chi.URLParam(r, "userID"), *req.Active)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SetActiveRequest struct {
	Active *bool `json:"active"`
}
