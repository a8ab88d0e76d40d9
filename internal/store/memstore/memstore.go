// Package memstore keeps every repository in process memory. It backs the
// server when STORE_BACKEND=memory and the handler and service tests.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fittrack/apiserver/internal/store"
	"github.com/fittrack/apiserver/types"
)

// Store groups the in-memory repositories.
type Store struct {
	Users           *UserRepository
	Exercises       *ExerciseRepository
	Recommendations *RecommendationRepository
	Completions     *CompletionRepository
	Progress        *ProgressRepository
}

// New constructs an empty Store.
func New() *Store {
	users := &UserRepository{users: make(map[string]types.User)}
	return &Store{
		Users:           users,
		Exercises:       &ExerciseRepository{exercises: make(map[string]types.Exercise)},
		Recommendations: &RecommendationRepository{recs: make(map[string]types.Recommendation)},
		Completions:     &CompletionRepository{completions: make(map[string]types.WorkoutCompletion), users: users},
		Progress:        &ProgressRepository{progress: make(map[string]types.Progress)},
	}
}

// UserRepository stores users in memory.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]types.User
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		found types.User
		ok    bool
	)
	for _, user := range r.users {
		if user.Username != username {
			continue
		}
		if !ok || user.CreatedAt.Before(found.CreatedAt) {
			found, ok = user, true
		}
	}
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return found, nil
}

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]types.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, other := range r.users {
		if id != user.ID && strings.EqualFold(other.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// ExerciseRepository is the in-memory exercise cache.
type ExerciseRepository struct {
	mu        sync.RWMutex
	exercises map[string]types.Exercise
}

func (r *ExerciseRepository) Get(ctx context.Context, id string) (types.Exercise, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exercise, ok := r.exercises[id]
	if !ok {
		return types.Exercise{}, store.ErrNotFound
	}
	return exercise, nil
}

func (r *ExerciseRepository) Upsert(ctx context.Context, exercise types.Exercise) (types.Exercise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exercise.UpdatedAt = time.Now().UTC()
	r.exercises[exercise.ID] = exercise
	return exercise, nil
}

// RecommendationRepository stores recommendations in memory.
type RecommendationRepository struct {
	mu   sync.RWMutex
	recs map[string]types.Recommendation
	seq  int64
	// order keeps creation order stable when timestamps collide.
	order map[string]int64
}

func (r *RecommendationRepository) List(ctx context.Context) ([]types.Recommendation, error) {
	return r.filter(func(types.Recommendation) bool { return true }), nil
}

func (r *RecommendationRepository) ListByUser(ctx context.Context, userID string) ([]types.Recommendation, error) {
	return r.filter(func(rec types.Recommendation) bool { return rec.UserID == userID }), nil
}

func (r *RecommendationRepository) filter(keep func(types.Recommendation) bool) []types.Recommendation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Recommendation, 0)
	for _, rec := range r.recs {
		if keep(rec) {
			rec.Tags = slices.Clone(rec.Tags)
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.order[out[i].ID] < r.order[out[j].ID] })
	return out
}

func (r *RecommendationRepository) Get(ctx context.Context, id string) (types.Recommendation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recs[id]
	if !ok {
		return types.Recommendation{}, store.ErrNotFound
	}
	rec.Tags = slices.Clone(rec.Tags)
	return rec, nil
}

func (r *RecommendationRepository) Create(ctx context.Context, rec types.Recommendation) (types.Recommendation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.order == nil {
		r.order = make(map[string]int64)
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Tags = rec.Tags.Normalize()
	r.seq++
	r.order[rec.ID] = r.seq
	r.recs[rec.ID] = rec
	return rec, nil
}

func (r *RecommendationRepository) Update(ctx context.Context, rec types.Recommendation) (types.Recommendation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.recs[rec.ID]
	if !ok {
		return types.Recommendation{}, store.ErrNotFound
	}
	existing.ExerciseID = rec.ExerciseID
	existing.Notes = rec.Notes
	existing.Tags = rec.Tags.Normalize()
	existing.UpdatedAt = time.Now().UTC()
	r.recs[rec.ID] = existing
	return existing, nil
}

func (r *RecommendationRepository) Delete(ctx context.Context, id string) (types.Recommendation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return types.Recommendation{}, store.ErrNotFound
	}
	delete(r.recs, id)
	delete(r.order, id)
	return rec, nil
}

// CompletionRepository stores workout completions in memory.
type CompletionRepository struct {
	mu          sync.RWMutex
	completions map[string]types.WorkoutCompletion
	users       *UserRepository
}

func (r *CompletionRepository) Create(ctx context.Context, completion types.WorkoutCompletion) (types.WorkoutCompletion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now().UTC()
	}
	r.completions[completion.ID] = completion
	return completion, nil
}

func (r *CompletionRepository) List(ctx context.Context) ([]types.CompletionView, error) {
	r.mu.RLock()
	views := make([]types.CompletionView, 0, len(r.completions))
	for _, completion := range r.completions {
		views = append(views, types.CompletionView{WorkoutCompletion: completion})
	}
	r.mu.RUnlock()

	for i := range views {
		if user, err := r.users.GetByID(ctx, views[i].UserID); err == nil {
			views[i].Username = user.Username
		}
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].CompletedAt.Equal(views[j].CompletedAt) {
			return views[i].ID < views[j].ID
		}
		return views[i].CompletedAt.After(views[j].CompletedAt)
	})
	return views, nil
}

func (r *CompletionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.completions[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.completions, id)
	return nil
}

// ProgressRepository stores progress records in memory. The mutex makes
// Increment atomic per process.
type ProgressRepository struct {
	mu       sync.Mutex
	progress map[string]types.Progress
}

func (r *ProgressRepository) GetOrCreate(ctx context.Context, userID string, periods types.Periods, now time.Time) (types.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progress[userID]
	if !ok {
		p = types.Progress{
			UserID:      userID,
			DayStart:    periods.Day,
			WeekStart:   periods.Week,
			MonthStart:  periods.Month,
			LastUpdated: now,
		}
		r.progress[userID] = p
	}
	return p, nil
}

func (r *ProgressRepository) Increment(ctx context.Context, userID string, periods types.Periods, goals types.ProgressGoals, now time.Time) (types.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progress[userID]
	if !ok {
		p = types.Progress{UserID: userID}
	}
	p = p.RolledOver(periods).Incremented(goals)
	p.LastUpdated = now
	r.progress[userID] = p
	return p, nil
}

func (r *ProgressRepository) Upsert(ctx context.Context, p types.Progress) (types.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[p.UserID] = p
	return p, nil
}
