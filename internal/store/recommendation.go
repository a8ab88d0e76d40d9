package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fittrack/apiserver/types"
)

// RecommendationRepository handles persistence for recommendations.
type RecommendationRepository struct {
	db *sql.DB
}

func NewRecommendationRepository(db *sql.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

const recommendationColumns = `id, user_id, exercise_id, notes, tags, created_at, updated_at`

func scanRecommendation(row rowScanner) (types.Recommendation, error) {
	var rec types.Recommendation
	var tagsJSON []byte
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ExerciseID,
		&rec.Notes,
		&tagsJSON,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return types.Recommendation{}, err
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &rec.Tags); err != nil {
			return types.Recommendation{}, fmt.Errorf("decode tags of recommendation %s: %w", rec.ID, err)
		}
	}
	rec.Tags = rec.Tags.Normalize()
	return rec, nil
}

func (r *RecommendationRepository) List(ctx context.Context) ([]types.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations ORDER BY created_at, id`
	return r.query(ctx, query)
}

func (r *RecommendationRepository) ListByUser(ctx context.Context, userID string) ([]types.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE user_id = $1 ORDER BY created_at, id`
	return r.query(ctx, query, userID)
}

func (r *RecommendationRepository) query(ctx context.Context, query string, args ...any) ([]types.Recommendation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := make([]types.Recommendation, 0)
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *RecommendationRepository) Get(ctx context.Context, id string) (types.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE id = $1`
	rec, err := scanRecommendation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Recommendation{}, ErrNotFound
		}
		return types.Recommendation{}, err
	}
	return rec, nil
}

func (r *RecommendationRepository) Create(ctx context.Context, rec types.Recommendation) (types.Recommendation, error) {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Tags = rec.Tags.Normalize()

	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return types.Recommendation{}, err
	}

	const query = `
		INSERT INTO recommendations (id, user_id, exercise_id, notes, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.UserID,
		rec.ExerciseID,
		rec.Notes,
		tagsJSON,
		rec.CreatedAt,
		rec.UpdatedAt,
	); err != nil {
		return types.Recommendation{}, err
	}
	return rec, nil
}

// Update replaces the exercise, notes and tags of an existing recommendation.
func (r *RecommendationRepository) Update(ctx context.Context, rec types.Recommendation) (types.Recommendation, error) {
	rec.UpdatedAt = time.Now().UTC()
	rec.Tags = rec.Tags.Normalize()

	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return types.Recommendation{}, err
	}

	const query = `
		UPDATE recommendations
		SET exercise_id = $1,
			notes = $2,
			tags = $3,
			updated_at = $4
		WHERE id = $5
		RETURNING user_id, created_at`
	err = r.db.QueryRowContext(
		ctx,
		query,
		rec.ExerciseID,
		rec.Notes,
		tagsJSON,
		rec.UpdatedAt,
		rec.ID,
	).Scan(&rec.UserID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Recommendation{}, ErrNotFound
		}
		return types.Recommendation{}, err
	}
	return rec, nil
}

// Delete removes a recommendation and returns the removed record.
func (r *RecommendationRepository) Delete(ctx context.Context, id string) (types.Recommendation, error) {
	query := `DELETE FROM recommendations WHERE id = $1 RETURNING ` + recommendationColumns
	rec, err := scanRecommendation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Recommendation{}, ErrNotFound
		}
		return types.Recommendation{}, err
	}
	return rec, nil
}
