package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/fittrack/apiserver/types"
)

// ProgressRepository handles persistence for per-user progress counters.
type ProgressRepository struct {
	db *sql.DB
}

func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

const progressColumns = `user_id, workouts_today, workouts_this_week, workouts_this_month,
		strength_progress, day_start, week_start, month_start, last_updated`

func scanProgress(row rowScanner) (types.Progress, error) {
	var p types.Progress
	err := row.Scan(
		&p.UserID,
		&p.WorkoutsToday,
		&p.WorkoutsThisWeek,
		&p.WorkoutsThisMonth,
		&p.StrengthProgress,
		&p.DayStart,
		&p.WeekStart,
		&p.MonthStart,
		&p.LastUpdated,
	)
	if err != nil {
		return types.Progress{}, err
	}
	p.DayStart = p.DayStart.UTC()
	p.WeekStart = p.WeekStart.UTC()
	p.MonthStart = p.MonthStart.UTC()
	p.LastUpdated = p.LastUpdated.UTC()
	return p, nil
}

// GetOrCreate returns the stored progress for userID, inserting a zeroed
// record for the given periods when none exists. Counters are returned
// as stored; rollover is the caller's concern.
func (r *ProgressRepository) GetOrCreate(ctx context.Context, userID string, periods types.Periods, now time.Time) (types.Progress, error) {
	const insert = `
		INSERT INTO progress (user_id, day_start, week_start, month_start, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, userID, periods.Day, periods.Week, periods.Month, now); err != nil {
		return types.Progress{}, err
	}

	query := `SELECT ` + progressColumns + ` FROM progress WHERE user_id = $1`
	return scanProgress(r.db.QueryRowContext(ctx, query, userID))
}

// Increment applies one completion in a single statement. Counters from an
// older period restart at zero before the increment, and every counter is
// capped by its goal, so concurrent completions cannot lose updates.
func (r *ProgressRepository) Increment(ctx context.Context, userID string, periods types.Periods, goals types.ProgressGoals, now time.Time) (types.Progress, error) {
	query := `
		INSERT INTO progress (` + progressColumns + `)
		VALUES ($1, LEAST(1, $5::int), LEAST(1, $6::int), LEAST(1, $7::int), LEAST($8::float8, 100), $2, $3, $4, $9)
		ON CONFLICT (user_id) DO UPDATE
		SET workouts_today = LEAST(
				CASE WHEN progress.day_start = EXCLUDED.day_start THEN progress.workouts_today ELSE 0 END + 1, $5::int),
			workouts_this_week = LEAST(
				CASE WHEN progress.week_start = EXCLUDED.week_start THEN progress.workouts_this_week ELSE 0 END + 1, $6::int),
			workouts_this_month = LEAST(
				CASE WHEN progress.month_start = EXCLUDED.month_start THEN progress.workouts_this_month ELSE 0 END + 1, $7::int),
			strength_progress = LEAST(progress.strength_progress + $8::float8, 100),
			day_start = EXCLUDED.day_start,
			week_start = EXCLUDED.week_start,
			month_start = EXCLUDED.month_start,
			last_updated = EXCLUDED.last_updated
		RETURNING ` + progressColumns
	return scanProgress(r.db.QueryRowContext(
		ctx,
		query,
		userID,
		periods.Day,
		periods.Week,
		periods.Month,
		goals.Daily,
		goals.Weekly,
		goals.Monthly,
		goals.StrengthStep(),
		now,
	))
}

// Upsert stores p as given, creating the record when needed.
func (r *ProgressRepository) Upsert(ctx context.Context, p types.Progress) (types.Progress, error) {
	query := `
		INSERT INTO progress (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE
		SET workouts_today = EXCLUDED.workouts_today,
			workouts_this_week = EXCLUDED.workouts_this_week,
			workouts_this_month = EXCLUDED.workouts_this_month,
			strength_progress = EXCLUDED.strength_progress,
			day_start = EXCLUDED.day_start,
			week_start = EXCLUDED.week_start,
			month_start = EXCLUDED.month_start,
			last_updated = EXCLUDED.last_updated
		RETURNING ` + progressColumns
	return scanProgress(r.db.QueryRowContext(
		ctx,
		query,
		p.UserID,
		p.WorkoutsToday,
		p.WorkoutsThisWeek,
		p.WorkoutsThisMonth,
		p.StrengthProgress,
		p.DayStart,
		p.WeekStart,
		p.MonthStart,
		p.LastUpdated,
	))
}
