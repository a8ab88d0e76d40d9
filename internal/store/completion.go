package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/fittrack/apiserver/types"
)

// CompletionRepository handles persistence for workout completions.
type CompletionRepository struct {
	db *sql.DB
}

func NewCompletionRepository(db *sql.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

func (r *CompletionRepository) Create(ctx context.Context, completion types.WorkoutCompletion) (types.WorkoutCompletion, error) {
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO workout_completions (id, user_id, exercise_id, workout_type, target, level, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		completion.ID,
		completion.UserID,
		completion.ExerciseID,
		completion.WorkoutType,
		completion.Target,
		completion.Level,
		completion.CompletedAt,
	); err != nil {
		return types.WorkoutCompletion{}, err
	}
	return completion, nil
}

// List returns every completion, newest first, joined with the owner's
// username. Username is empty when the user no longer exists.
func (r *CompletionRepository) List(ctx context.Context) ([]types.CompletionView, error) {
	const query = `
		SELECT c.id, c.user_id, c.exercise_id, c.workout_type, c.target, c.level, c.completed_at, u.username
		FROM workout_completions c
		LEFT JOIN users u ON u.id = c.user_id
		ORDER BY c.completed_at DESC, c.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]types.CompletionView, 0)
	for rows.Next() {
		var view types.CompletionView
		var username sql.NullString
		if err := rows.Scan(
			&view.ID,
			&view.UserID,
			&view.ExerciseID,
			&view.WorkoutType,
			&view.Target,
			&view.Level,
			&view.CompletedAt,
			&username,
		); err != nil {
			return nil, err
		}
		view.Username = username.String
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return views, nil
}

func (r *CompletionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM workout_completions WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
