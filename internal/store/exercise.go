package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fittrack/apiserver/types"
)

// ExerciseRepository is the local cache of catalog exercises.
type ExerciseRepository struct {
	db *sql.DB
}

func NewExerciseRepository(db *sql.DB) *ExerciseRepository {
	return &ExerciseRepository{db: db}
}

func (r *ExerciseRepository) Get(ctx context.Context, id string) (types.Exercise, error) {
	const query = `
		SELECT id, name, body_part, target, equipment, gif_url, updated_at
		FROM exercises
		WHERE id = $1`
	var exercise types.Exercise
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&exercise.ID,
		&exercise.Name,
		&exercise.BodyPart,
		&exercise.Target,
		&exercise.Equipment,
		&exercise.GifURL,
		&exercise.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Exercise{}, ErrNotFound
		}
		return types.Exercise{}, err
	}
	return exercise, nil
}

func (r *ExerciseRepository) Upsert(ctx context.Context, exercise types.Exercise) (types.Exercise, error) {
	exercise.UpdatedAt = time.Now().UTC()

	const query = `
		INSERT INTO exercises (id, name, body_part, target, equipment, gif_url, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			body_part = EXCLUDED.body_part,
			target = EXCLUDED.target,
			equipment = EXCLUDED.equipment,
			gif_url = EXCLUDED.gif_url,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		exercise.ID,
		exercise.Name,
		exercise.BodyPart,
		exercise.Target,
		exercise.Equipment,
		exercise.GifURL,
		exercise.UpdatedAt,
	); err != nil {
		return types.Exercise{}, err
	}
	return exercise, nil
}
