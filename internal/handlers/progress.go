package handlers

import (
	"net/http"

	"github.com/fittrack/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProgressHandler serves per-user progress. Callers may only touch their
// own record unless they are an active admin.
type ProgressHandler struct {
	progress *services.ProgressService
	users    *services.UserService
	log      *zap.Logger
}

// NewProgressHandler constructs a ProgressHandler.
func NewProgressHandler(progress *services.ProgressService, users *services.UserService, log *zap.Logger) *ProgressHandler {
	return &ProgressHandler{progress: progress, users: users, log: orNop(log).Named("progress")}
}

// ProgressRouter registers progress routes on the given router.
func ProgressRouter(r chi.Router, handler *ProgressHandler, requireAuth func(http.Handler) http.Handler) {
	r.Use(requireAuth)
	r.With(handler.requireSelfOrAdmin).Get("/{userID}", handler.Get)
	r.With(handler.requireSelfOrAdmin).Put("/{userID}", handler.Put)
}

func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.progress.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProgressHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	p, err := h.progress.Put(r.Context(), chi.URLParam(r, "userID"), services.ProgressUpdate{
		WorkoutsToday:     req.WorkoutsToday,
		WorkoutsThisWeek:  req.WorkoutsThisWeek,
		WorkoutsThisMonth: req.WorkoutsThisMonth,
		StrengthProgress:  req.StrengthProgress,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProgressHandler) requireSelfOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := subjectFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		target, err := services.ParseID("userId", chi.URLParam(r, "userID"))
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
		if target == caller.UserID {
			next.ServeHTTP(w, r)
			return
		}

		ok, err := isActiveAdmin(r, h.users, caller.UserID)
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, "cannot access another user's progress")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ProgressRequest struct {
	WorkoutsToday     int     `json:"workoutsToday"`
	WorkoutsThisWeek  int     `json:"workoutsThisWeek"`
	WorkoutsThisMonth int     `json:"workoutsThisMonth"`
	StrengthProgress  float64 `json:"strengthProgress"`
}
