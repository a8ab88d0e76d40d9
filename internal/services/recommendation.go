package services

import (
	"context"
	"errors"
	"strings"

	"github.com/fittrack/apiserver/internal/store"
	"github.com/fittrack/apiserver/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultEnrichConcurrency = 8

// RecommendationRepository defines persistence operations for recommendations.
type RecommendationRepository interface {
	List(ctx context.Context) ([]types.Recommendation, error)
	ListByUser(ctx context.Context, userID string) ([]types.Recommendation, error)
	Get(ctx context.Context, id string) (types.Recommendation, error)
	Create(ctx context.Context, rec types.Recommendation) (types.Recommendation, error)
	Update(ctx context.Context, rec types.Recommendation) (types.Recommendation, error)
	Delete(ctx context.Context, id string) (types.Recommendation, error)
}

// RecommendationService encapsulates recommendation use-cases.
type RecommendationService struct {
	repo        RecommendationRepository
	exercises   ExerciseLookup
	notifier    Notifier
	concurrency int
	log         *zap.Logger
}

// RecommendationOption configures optional behaviour.
type RecommendationOption func(*RecommendationService)

// WithEnrichConcurrency bounds parallel exercise lookups per list call.
func WithEnrichConcurrency(n int) RecommendationOption {
	return func(s *RecommendationService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func NewRecommendationService(
	repo RecommendationRepository,
	exercises ExerciseLookup,
	notifier Notifier,
	log *zap.Logger,
	opts ...RecommendationOption,
) *RecommendationService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &RecommendationService{
		repo:        repo,
		exercises:   exercises,
		notifier:    notifier,
		concurrency: defaultEnrichConcurrency,
		log:         log.Named("recommendations"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRecommendationInput carries a new recommendation.
type CreateRecommendationInput struct {
	UserID     string
	ExerciseID string
	Notes      string
	Tags       types.Tags
}

// EditRecommendationInput replaces a recommendation's exercise, notes and tags.
type EditRecommendationInput struct {
	ExerciseID string
	Notes      string
	Tags       types.Tags
}

// ListAll returns every recommendation with exercise detail attached.
func (s *RecommendationService) ListAll(ctx context.Context) ([]types.RecommendationView, error) {
	recs, err := s.repo.List(ctx)
	if err != nil {
		s.log.Error("list recommendations", zap.Error(err))
		return nil, persistence("list recommendations", err)
	}
	return s.enrich(ctx, recs), nil
}

// ListForUser returns the user's recommendations with exercise detail
// attached. A user without recommendations gets an empty list.
func (s *RecommendationService) ListForUser(ctx context.Context, userID string) ([]types.RecommendationView, error) {
	userID, err := ParseID("userId", userID)
	if err != nil {
		return nil, err
	}
	recs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.log.Error("list recommendations for user", zap.String("user_id", userID), zap.Error(err))
		return nil, persistence("list recommendations", err)
	}
	return s.enrich(ctx, recs), nil
}

// Create stores a recommendation. The exercise id is not resolved here;
// enrichment happens when the recommendation is read.
func (s *RecommendationService) Create(ctx context.Context, in CreateRecommendationInput) (types.Recommendation, error) {
	userID, err := ParseID("userId", in.UserID)
	if err != nil {
		return types.Recommendation{}, err
	}
	exerciseID, err := ParseExerciseID(in.ExerciseID)
	if err != nil {
		return types.Recommendation{}, err
	}

	rec, err := s.repo.Create(ctx, types.Recommendation{
		ID:         uuid.NewString(),
		UserID:     userID,
		ExerciseID: exerciseID,
		Notes:      strings.TrimSpace(in.Notes),
		Tags:       in.Tags.Normalize(),
	})
	if err != nil {
		s.log.Error("create recommendation", zap.String("user_id", userID), zap.Error(err))
		return types.Recommendation{}, persistence("create recommendation", err)
	}

	s.notifier.RecommendationUpdated(ctx, rec.UserID)
	return rec, nil
}

// Edit fully replaces exercise id, notes and tags. Omitted tags reset to empty.
func (s *RecommendationService) Edit(ctx context.Context, id string, in EditRecommendationInput) (types.Recommendation, error) {
	id, err := ParseID("id", id)
	if err != nil {
		return types.Recommendation{}, err
	}
	exerciseID, err := ParseExerciseID(in.ExerciseID)
	if err != nil {
		return types.Recommendation{}, err
	}

	rec, err := s.repo.Update(ctx, types.Recommendation{
		ID:         id,
		ExerciseID: exerciseID,
		Notes:      strings.TrimSpace(in.Notes),
		Tags:       in.Tags.Normalize(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Recommendation{}, notFound("recommendation", id)
		}
		s.log.Error("update recommendation", zap.String("recommendation_id", id), zap.Error(err))
		return types.Recommendation{}, persistence("update recommendation", err)
	}

	s.notifier.RecommendationUpdated(ctx, rec.UserID)
	return rec, nil
}

// Delete removes a recommendation and returns the removed record.
func (s *RecommendationService) Delete(ctx context.Context, id string) (types.Recommendation, error) {
	id, err := ParseID("id", id)
	if err != nil {
		return types.Recommendation{}, err
	}

	rec, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Recommendation{}, notFound("recommendation", id)
		}
		s.log.Error("delete recommendation", zap.String("recommendation_id", id), zap.Error(err))
		return types.Recommendation{}, persistence("delete recommendation", err)
	}

	s.notifier.RecommendationUpdated(ctx, rec.UserID)
	return rec, nil
}

// enrich resolves exercise detail for every record. A failed lookup only
// marks its own record unavailable.
func (s *RecommendationService) enrich(ctx context.Context, recs []types.Recommendation) []types.RecommendationView {
	views := make([]types.RecommendationView, len(recs))
	if len(recs) == 0 {
		return views
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, rec := range recs {
		views[i] = types.RecommendationView{Recommendation: rec}
		g.Go(func() error {
			views[i].Exercise = s.detail(ctx, rec.ExerciseID)
			return nil
		})
	}
	_ = g.Wait()
	return views
}

func (s *RecommendationService) detail(ctx context.Context, exerciseID string) types.ExerciseDetail {
	if s.exercises == nil {
		return types.UnavailableDetail(exerciseID)
	}
	exercise, err := s.exercises.Lookup(ctx, exerciseID)
	if err != nil {
		s.log.Warn("exercise lookup failed", zap.String("exercise_id", exerciseID), zap.Error(err))
		return types.UnavailableDetail(exerciseID)
	}
	return types.AvailableDetail(exercise)
}
