package services

import (
	"context"
	"time"

	"github.com/fittrack/apiserver/types"
	"go.uber.org/zap"
)

// ProgressRepository defines persistence operations for progress records.
type ProgressRepository interface {
	GetOrCreate(ctx context.Context, userID string, periods types.Periods, now time.Time) (types.Progress, error)
	Increment(ctx context.Context, userID string, periods types.Periods, goals types.ProgressGoals, now time.Time) (types.Progress, error)
	Upsert(ctx context.Context, p types.Progress) (types.Progress, error)
}

// ProgressService owns the per-user counters. Day, week and month
// rollover is computed here from stored period starts, so every client
// sees the same numbers regardless of its own clock.
type ProgressService struct {
	repo  ProgressRepository
	goals types.ProgressGoals
	loc   *time.Location
	now   func() time.Time
	log   *zap.Logger
}

// ProgressOption configures optional behaviour.
type ProgressOption func(*ProgressService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ProgressOption {
	return func(s *ProgressService) {
		s.now = now
	}
}

// WithLocation sets the zone period boundaries are computed in.
func WithLocation(loc *time.Location) ProgressOption {
	return func(s *ProgressService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewProgressService(repo ProgressRepository, goals types.ProgressGoals, log *zap.Logger, opts ...ProgressOption) *ProgressService {
	if goals.Daily <= 0 || goals.Weekly <= 0 || goals.Monthly <= 0 {
		goals = types.DefaultProgressGoals
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &ProgressService{
		repo:  repo,
		goals: goals,
		loc:   time.UTC,
		now:   time.Now,
		log:   log.Named("progress"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Goals returns the configured ceilings.
func (s *ProgressService) Goals() types.ProgressGoals {
	return s.goals
}

// ProgressUpdate carries client-supplied counter values.
type ProgressUpdate struct {
	WorkoutsToday     int
	WorkoutsThisWeek  int
	WorkoutsThisMonth int
	StrengthProgress  float64
}

// Get returns the user's progress, creating it on first read.
func (s *ProgressService) Get(ctx context.Context, userID string) (types.Progress, error) {
	userID, err := ParseID("userId", userID)
	if err != nil {
		return types.Progress{}, err
	}
	now := s.now().UTC()
	periods := types.PeriodsAt(now, s.loc)
	p, err := s.repo.GetOrCreate(ctx, userID, periods, now)
	if err != nil {
		s.log.Error("load progress", zap.String("user_id", userID), zap.Error(err))
		return types.Progress{}, persistence("load progress", err)
	}
	return p.RolledOver(periods), nil
}

// Put overwrites the user's counters. Values are clamped to the goals.
func (s *ProgressService) Put(ctx context.Context, userID string, in ProgressUpdate) (types.Progress, error) {
	userID, err := ParseID("userId", userID)
	if err != nil {
		return types.Progress{}, err
	}
	if in.WorkoutsToday < 0 || in.WorkoutsThisWeek < 0 || in.WorkoutsThisMonth < 0 || in.StrengthProgress < 0 {
		return types.Progress{}, invalid("progress", "counters must not be negative")
	}

	now := s.now().UTC()
	periods := types.PeriodsAt(now, s.loc)
	p, err := s.repo.Upsert(ctx, types.Progress{
		UserID:            userID,
		WorkoutsToday:     min(in.WorkoutsToday, s.goals.Daily),
		WorkoutsThisWeek:  min(in.WorkoutsThisWeek, s.goals.Weekly),
		WorkoutsThisMonth: min(in.WorkoutsThisMonth, s.goals.Monthly),
		StrengthProgress:  min(in.StrengthProgress, types.MaxStrengthProgress),
		DayStart:          periods.Day,
		WeekStart:         periods.Week,
		MonthStart:        periods.Month,
		LastUpdated:       now,
	})
	if err != nil {
		s.log.Error("store progress", zap.String("user_id", userID), zap.Error(err))
		return types.Progress{}, persistence("store progress", err)
	}
	return p, nil
}

// recordCompletion applies one completion to the user's counters.
func (s *ProgressService) recordCompletion(ctx context.Context, userID string, at time.Time) (types.Progress, error) {
	periods := types.PeriodsAt(at, s.loc)
	p, err := s.repo.Increment(ctx, userID, periods, s.goals, at)
	if err != nil {
		return types.Progress{}, persistence("increment progress", err)
	}
	return p, nil
}
