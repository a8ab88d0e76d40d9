package services

import (
	"context"

	"github.com/fittrack/apiserver/types"
)

// Notifier announces state changes on the notification bus. Delivery is
// best-effort, so the methods report nothing back to the caller.
type Notifier interface {
	RecommendationUpdated(ctx context.Context, userID string)
	ExerciseCompleted(ctx context.Context, completion types.WorkoutCompletion)
	WorkoutDeleted(ctx context.Context, completionID string)
}

type nopNotifier struct{}

func (nopNotifier) RecommendationUpdated(context.Context, string)              {}
func (nopNotifier) ExerciseCompleted(context.Context, types.WorkoutCompletion) {}
func (nopNotifier) WorkoutDeleted(context.Context, string)                     {}

// ExerciseLookup resolves exercise metadata by id.
type ExerciseLookup interface {
	Lookup(ctx context.Context, id string) (types.Exercise, error)
}
