package client

import (
	"encoding/json"
	"slices"
	"sort"
	"sync"

	"github.com/fittrack/apiserver/types"
)

const (
	seenEnvelopeLimit = 1024
	tombstoneLimit    = 1024
)

// AdminView is the admin dashboard's merged state. Events are refetch
// hints: a completion event upserts the completion by id, a delete removes
// it, and a recommendation event marks that user's list stale. Applying the
// same envelope twice leaves the view unchanged.
//
// Events of different kinds may arrive in any order, so deleted ids are
// remembered and a completion event for one of them is ignored.
type AdminView struct {
	mu          sync.Mutex
	completions map[string]types.CompletionView
	stale       map[string]struct{}
	seen        *boundedSet
	deleted     *boundedSet
}

// NewAdminView constructs an empty view.
func NewAdminView() *AdminView {
	return &AdminView{
		completions: make(map[string]types.CompletionView),
		stale:       make(map[string]struct{}),
		seen:        newBoundedSet(seenEnvelopeLimit),
		deleted:     newBoundedSet(tombstoneLimit),
	}
}

// ReplaceCompletions installs a freshly fetched completion list, leaving
// out completions already known to be deleted.
func (v *AdminView) ReplaceCompletions(list []types.CompletionView) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.completions = make(map[string]types.CompletionView, len(list))
	for _, c := range list {
		if v.deleted.has(c.ID) {
			continue
		}
		v.completions[c.ID] = c
	}
}

// Apply merges one envelope and reports whether the view changed.
func (v *AdminView) Apply(env types.Envelope) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.seen.has(env.ID) {
		return false
	}
	v.seen.add(env.ID)

	switch env.Event {
	case types.EventRecommendationUpdated:
		var payload types.RecommendationUpdated
		if json.Unmarshal(env.Data, &payload) != nil || payload.UserID == "" {
			return false
		}
		if _, ok := v.stale[payload.UserID]; ok {
			return false
		}
		v.stale[payload.UserID] = struct{}{}
		return true
	case types.EventExerciseCompleted:
		var payload types.ExerciseCompleted
		if json.Unmarshal(env.Data, &payload) != nil || payload.Completion.ID == "" {
			return false
		}
		if v.deleted.has(payload.Completion.ID) {
			return false
		}
		existing, ok := v.completions[payload.Completion.ID]
		if ok && sameCompletion(existing.WorkoutCompletion, payload.Completion) {
			return false
		}
		v.completions[payload.Completion.ID] = types.CompletionView{
			WorkoutCompletion: payload.Completion,
			Username:          existing.Username,
		}
		return true
	case types.EventWorkoutDeleted:
		var payload types.WorkoutDeleted
		if json.Unmarshal(env.Data, &payload) != nil || payload.ID == "" {
			return false
		}
		v.deleted.add(payload.ID)
		if _, ok := v.completions[payload.ID]; !ok {
			return false
		}
		delete(v.completions, payload.ID)
		return true
	default:
		return false
	}
}

// Completions returns the completions newest first.
func (v *AdminView) Completions() []types.CompletionView {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]types.CompletionView, 0, len(v.completions))
	for _, c := range v.completions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	return out
}

// StaleUsers returns the users whose recommendations need a refetch.
func (v *AdminView) StaleUsers() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.stale))
	for id := range v.stale {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// MarkFresh clears the stale mark after a refetch.
func (v *AdminView) MarkFresh(userID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.stale, userID)
}

// boundedSet remembers the most recent limit ids.
type boundedSet struct {
	limit int
	ids   map[string]struct{}
	order []string
}

func newBoundedSet(limit int) *boundedSet {
	return &boundedSet{limit: limit, ids: make(map[string]struct{})}
}

func (s *boundedSet) has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *boundedSet) add(id string) {
	if s.has(id) {
		return
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.limit {
		delete(s.ids, s.order[0])
		s.order = s.order[1:]
	}
}

func sameCompletion(a, b types.WorkoutCompletion) bool {
	return a.ID == b.ID && a.UserID == b.UserID && a.ExerciseID == b.ExerciseID &&
		a.WorkoutType == b.WorkoutType && a.Target == b.Target && a.Level == b.Level &&
		a.CompletedAt.Equal(b.CompletedAt)
}
