package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/fittrack/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ExerciseHandler serves the catalog and workout completions.
type ExerciseHandler struct {
	exercises   *services.ExerciseService
	completions *services.CompletionService
	log         *zap.Logger
}

// NewExerciseHandler constructs an ExerciseHandler.
func NewExerciseHandler(exercises *services.ExerciseService, completions *services.CompletionService, log *zap.Logger) *ExerciseHandler {
	return &ExerciseHandler{exercises: exercises, completions: completions, log: orNop(log).Named("exercises")}
}

// ExerciseRouter registers exercise and completion routes on the given router.
func ExerciseRouter(r chi.Router, handler *ExerciseHandler, requireAuth, requireAdmin func(http.Handler) http.Handler) {
	r.Use(requireAuth)
	r.Post("/complete", handler.RecordCompletion)
	r.With(requireAdmin).Get("/completed", handler.ListCompletions)
	r.With(requireAdmin).Delete("/completed/{id}", handler.DeleteCompletion)

	r.Get("/", handler.Search)
	r.Get("/bodyparts", handler.BodyParts)
	r.Get("/{exerciseID}", handler.Get)
	r.Get("/{exerciseID}/media", handler.Media)
}

// RecordCompletion stores a completion for the authenticated user. Any
// user id in the body is ignored.
func (h *ExerciseHandler) RecordCompletion(w http.ResponseWriter, r *http.Request) {
	caller, err := subjectFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RecordCompletionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	completion, err := h.completions.Record(r.Context(), caller.UserID, services.RecordCompletionInput{
		ExerciseID:  req.ExerciseID,
		WorkoutType: req.WorkoutType,
		Target:      req.Target,
		Level:       req.Level,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, completion)
}

func (h *ExerciseHandler) ListCompletions(w http.ResponseWriter, r *http.Request) {
	views, err := h.completions.List(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *ExerciseHandler) DeleteCompletion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.completions.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true, ID: id})
}

func (h *ExerciseHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := parseOptionalInt(query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	items, err := h.exercises.Search(r.Context(), services.ExerciseQuery{
		BodyPart: query.Get("bodyPart"),
		Name:     query.Get("name"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ExerciseHandler) BodyParts(w http.ResponseWriter, r *http.Request) {
	parts, err := h.exercises.BodyParts(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (h *ExerciseHandler) Get(w http.ResponseWriter, r *http.Request) {
	exercise, err := h.exercises.Get(r.Context(), chi.URLParam(r, "exerciseID"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, exercise)
}

func (h *ExerciseHandler) Media(w http.ResponseWriter, r *http.Request) {
	media, err := h.exercises.Media(r.Context(), chi.URLParam(r, "exerciseID"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	defer media.Body.Close()

	w.Header().Set("Content-Type", media.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, media.Body); err != nil {
		h.log.Debug("media copy interrupted", zap.Error(err))
	}
}

type RecordCompletionRequest struct {
	ExerciseID  string `json:"exerciseId"`
	WorkoutType string `json:"workoutType"`
	Target      string `json:"target"`
	Level       string `json:"level"`
}

func parseOptionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}
