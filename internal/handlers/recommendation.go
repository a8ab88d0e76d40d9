package handlers

import (
	"net/http"

	"github.com/fittrack/apiserver/internal/services"
	"github.com/fittrack/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RecommendationHandler provides HTTP handlers for recommendations.
type RecommendationHandler struct {
	service *services.RecommendationService
	log     *zap.Logger
}

// NewRecommendationHandler constructs a RecommendationHandler.
func NewRecommendationHandler(service *services.RecommendationService, log *zap.Logger) *RecommendationHandler {
	return &RecommendationHandler{service: service, log: orNop(log).Named("recommendations")}
}

// RecommendationRouter registers recommendation routes on the given router.
func RecommendationRouter(r chi.Router, handler *RecommendationHandler, requireAuth, requireAdmin func(http.Handler) http.Handler) {
	r.Use(requireAuth)
	r.With(requireAdmin).Get("/", handler.ListAll)
	r.With(requireAdmin).Post("/", handler.Create)
	r.Get("/{id}", handler.ListForUser)
	r.With(requireAdmin).Put("/{id}", handler.Edit)
	r.With(requireAdmin).Delete("/{id}", handler.Delete)
}

func (h *RecommendationHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// ListForUser serves GET /recommendations/{userID}. The segment shares the
// {id} parameter with the admin routes under the same prefix.
func (h *RecommendationHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListForUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *RecommendationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRecommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	rec, err := h.service.Create(r.Context(), services.CreateRecommendationInput{
		UserID:     req.UserID,
		ExerciseID: req.ExerciseID,
		Notes:      req.Notes,
		Tags:       req.Tags,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *RecommendationHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req EditRecommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	rec, err := h.service.Edit(r.Context(), chi.URLParam(r, "id"), services.EditRecommendationInput{
		ExerciseID: req.ExerciseID,
		Notes:      req.Notes,
		Tags:       req.Tags,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *RecommendationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true, ID: rec.ID})
}

type CreateRecommendationRequest struct {
	UserID     string     `json:"userId"`
	ExerciseID string     `json:"exerciseId"`
	Notes      string     `json:"notes"`
	Tags       types.Tags `json:"tags"`
}

type EditRecommendationRequest struct {
	ExerciseID string     `json:"exerciseId"`
	Notes      string     `json:"notes"`
	Tags       types.Tags `json:"tags"`
}
