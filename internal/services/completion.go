package services

import (
	"context"
	"errors"
	"strings"

	"github.com/fittrack/apiserver/internal/observability"
	"github.com/fittrack/apiserver/internal/store"
	"github.com/fittrack/apiserver/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CompletionRepository defines persistence operations for workout completions.
type CompletionRepository interface {
	Create(ctx context.Context, completion types.WorkoutCompletion) (types.WorkoutCompletion, error)
	List(ctx context.Context) ([]types.CompletionView, error)
	Delete(ctx context.Context, id string) error
}

// CompletionService records finished workouts and keeps progress in step.
type CompletionService struct {
	repo     CompletionRepository
	progress *ProgressService
	notifier Notifier
	log      *zap.Logger
}

func NewCompletionService(repo CompletionRepository, progress *ProgressService, notifier Notifier, log *zap.Logger) *CompletionService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CompletionService{
		repo:     repo,
		progress: progress,
		notifier: notifier,
		log:      log.Named("completions"),
	}
}

// RecordCompletionInput carries the client-supplied part of a completion.
type RecordCompletionInput struct {
	ExerciseID  string
	WorkoutType string
	Target      string
	Level       string
}

// Record writes a completion for userID stamped with the current time and
// then bumps the user's progress counters. Once the completion is stored the
// call succeeds and the event is published; a failed progress update is
// logged and leaves the counters behind by one.
func (s *CompletionService) Record(ctx context.Context, userID string, in RecordCompletionInput) (types.WorkoutCompletion, error) {
	userID, err := ParseID("userId", userID)
	if err != nil {
		return types.WorkoutCompletion{}, err
	}
	exerciseID, err := ParseExerciseID(in.ExerciseID)
	if err != nil {
		return types.WorkoutCompletion{}, err
	}

	completion, err := s.repo.Create(ctx, types.WorkoutCompletion{
		ID:          uuid.NewString(),
		UserID:      userID,
		ExerciseID:  exerciseID,
		WorkoutType: strings.TrimSpace(in.WorkoutType),
		Target:      strings.TrimSpace(in.Target),
		Level:       strings.TrimSpace(in.Level),
		CompletedAt: s.progress.now().UTC(),
	})
	if err != nil {
		s.log.Error("create completion", zap.String("user_id", userID), zap.String("exercise_id", exerciseID), zap.Error(err))
		return types.WorkoutCompletion{}, persistence("create completion", err)
	}

	if _, err := s.progress.recordCompletion(ctx, userID, completion.CompletedAt); err != nil {
		s.log.Error("progress not updated for stored completion",
			zap.String("user_id", userID), zap.String("completion_id", completion.ID), zap.Error(err))
	}
	observability.RecordCompletion()

	s.notifier.ExerciseCompleted(ctx, completion)
	return completion, nil
}

// List returns every completion joined with its owner's username.
func (s *CompletionService) List(ctx context.Context) ([]types.CompletionView, error) {
	views, err := s.repo.List(ctx)
	if err != nil {
		s.log.Error("list completions", zap.Error(err))
		return nil, persistence("list completions", err)
	}
	for i := range views {
		if views[i].Username == "" {
			views[i].Username = types.UnknownUsername
		}
	}
	return views, nil
}

// Delete removes a completion. Progress counters are left as they are.
func (s *CompletionService) Delete(ctx context.Context, id string) error {
	id, err := ParseID("id", id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("completion", id)
		}
		s.log.Error("delete completion", zap.String("completion_id", id), zap.Error(err))
		return persistence("delete completion", err)
	}

	s.notifier.WorkoutDeleted(ctx, id)
	return nil
}
