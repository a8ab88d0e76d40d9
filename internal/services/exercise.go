package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fittrack/apiserver/internal/catalog"
	"github.com/fittrack/apiserver/types"
	"go.uber.org/zap"
)

const (
	defaultExercisePageSize = 20
	maxExercisePageSize     = 100
)

// ExerciseCatalog browses the external exercise catalog.
type ExerciseCatalog interface {
	List(ctx context.Context, page catalog.Page) ([]types.Exercise, error)
	ByBodyPart(ctx context.Context, bodyPart string, page catalog.Page) ([]types.Exercise, error)
	ByName(ctx context.Context, name string, page catalog.Page) ([]types.Exercise, error)
	BodyParts(ctx context.Context) ([]string, error)
}

// MediaSource opens an exercise's demonstration media.
type MediaSource interface {
	Open(ctx context.Context, exerciseID string) (catalog.Media, error)
}

// ExerciseService exposes the catalog to API callers.
type ExerciseService struct {
	catalog ExerciseCatalog
	lookup  ExerciseLookup
	media   MediaSource
	log     *zap.Logger
}

func NewExerciseService(cat ExerciseCatalog, lookup ExerciseLookup, media MediaSource, log *zap.Logger) *ExerciseService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExerciseService{catalog: cat, lookup: lookup, media: media, log: log.Named("exercises")}
}

// ExerciseQuery filters a catalog listing. BodyPart wins over Name.
type ExerciseQuery struct {
	BodyPart string
	Name     string
	Limit    int
	Offset   int
}

// Search lists catalog exercises.
func (s *ExerciseService) Search(ctx context.Context, q ExerciseQuery) ([]types.Exercise, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return nil, invalid("page", "limit and offset must not be negative")
	}
	page := catalog.Page{Limit: q.Limit, Offset: q.Offset}
	if page.Limit == 0 {
		page.Limit = defaultExercisePageSize
	}
	page.Limit = min(page.Limit, maxExercisePageSize)

	var (
		items []types.Exercise
		err   error
	)
	switch {
	case strings.TrimSpace(q.BodyPart) != "":
		items, err = s.catalog.ByBodyPart(ctx, strings.TrimSpace(q.BodyPart), page)
	case strings.TrimSpace(q.Name) != "":
		items, err = s.catalog.ByName(ctx, strings.ToLower(strings.TrimSpace(q.Name)), page)
	default:
		items, err = s.catalog.List(ctx, page)
	}
	if err != nil {
		return nil, s.upstream("search exercises", err)
	}
	if items == nil {
		items = []types.Exercise{}
	}
	return items, nil
}

// BodyParts lists the catalog's body-part categories.
func (s *ExerciseService) BodyParts(ctx context.Context) ([]string, error) {
	parts, err := s.catalog.BodyParts(ctx)
	if err != nil {
		return nil, s.upstream("list body parts", err)
	}
	if parts == nil {
		parts = []string{}
	}
	return parts, nil
}

// Get returns one exercise, preferring the local cache.
func (s *ExerciseService) Get(ctx context.Context, id string) (types.Exercise, error) {
	id, err := ParseExerciseID(id)
	if err != nil {
		return types.Exercise{}, err
	}
	exercise, err := s.lookup.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return types.Exercise{}, notFound("exercise", id)
		}
		return types.Exercise{}, s.upstream("lookup exercise", err)
	}
	return exercise, nil
}

// Media opens the exercise's demonstration. The caller closes Body.
func (s *ExerciseService) Media(ctx context.Context, id string) (catalog.Media, error) {
	id, err := ParseExerciseID(id)
	if err != nil {
		return catalog.Media{}, err
	}
	media, err := s.media.Open(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Media{}, notFound("exercise media", id)
		}
		return catalog.Media{}, s.upstream("open exercise media", err)
	}
	return media, nil
}

func (s *ExerciseService) upstream(op string, err error) error {
	s.log.Warn(op, zap.Error(err))
	return fmt.Errorf("%s: %w: %v", op, ErrUpstreamUnavailable, err)
}
