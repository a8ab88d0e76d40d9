package types

import (
	"encoding/json"
	"time"
)

// EventKind names a notification-bus event.
type EventKind string

const (
	// EventRecommendationUpdated carries RecommendationUpdated.
	EventRecommendationUpdated EventKind = "recommendationUpdated"
	// EventExerciseCompleted carries ExerciseCompleted.
	EventExerciseCompleted EventKind = "exerciseCompleted"
	// EventWorkoutDeleted carries WorkoutDeleted.
	EventWorkoutDeleted EventKind = "workoutDeleted"
)

// Envelope is the frame delivered to notification subscribers.
//
// Delivery is best-effort and at most once per connected subscriber.
// There is no replay; consumers treat every event as a hint to refetch,
// never as the source of truth.
type Envelope struct {
	ID     string          `json:"id"`
	Event  EventKind       `json:"event"`
	Data   json.RawMessage `json:"data"`
	SentAt time.Time       `json:"sentAt"`
}

// RecommendationUpdated is published after any recommendation write.
type RecommendationUpdated struct {
	UserID string `json:"userId"`
}

// ExerciseCompleted is published after a completion is recorded.
type ExerciseCompleted struct {
	Completion WorkoutCompletion `json:"completion"`
}

// WorkoutDeleted is published after an admin deletes a completion.
type WorkoutDeleted struct {
	ID string `json:"id"`
}
