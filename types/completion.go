package types

import "time"

// WorkoutCompletion records that a user finished an exercise.
// Completions are immutable once written; admins may delete them.
type WorkoutCompletion struct {
	// ID is the unique identifier of the completion.
	ID string `json:"id" db:"id"`

	// UserID identifies the user who completed the workout. It always
	// comes from the authenticated session.
	UserID string `json:"userId" db:"user_id"`

	// ExerciseID identifies the completed exercise.
	ExerciseID string `json:"exerciseId" db:"exercise_id"`

	// WorkoutType is a label such as "strength" or "cardio".
	WorkoutType string `json:"workoutType" db:"workout_type"`

	// Target is the targeted muscle group label.
	Target string `json:"target" db:"target"`

	// Level is the difficulty level label.
	Level string `json:"level" db:"level"`

	// CompletedAt is the time the completion was written.
	CompletedAt time.Time `json:"completedAt" db:"completed_at"`
}

// CompletionView joins a completion with the owning user's display name.
type CompletionView struct {
	WorkoutCompletion
	Username string `json:"username"`
}

// UnknownUsername is shown for completions whose user no longer exists.
const UnknownUsername = "Unknown user"
