package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/fittrack/apiserver/internal/observability"
	"github.com/fittrack/apiserver/internal/store"
	"github.com/fittrack/apiserver/types"
	"go.uber.org/zap"
)

// Cache is the local exercise cache.
type Cache interface {
	Get(ctx context.Context, id string) (types.Exercise, error)
	Upsert(ctx context.Context, exercise types.Exercise) (types.Exercise, error)
}

// Source fetches an exercise from the catalog.
type Source interface {
	ByID(ctx context.Context, id string) (types.Exercise, error)
}

// CachedLookup resolves exercises from the local cache first and fills the
// cache from the catalog on a miss.
type CachedLookup struct {
	cache  Cache
	source Source
	log    *zap.Logger
}

// NewCachedLookup constructs a CachedLookup. Either collaborator may be nil.
func NewCachedLookup(cache Cache, source Source, log *zap.Logger) *CachedLookup {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedLookup{cache: cache, source: source, log: log.Named("catalog")}
}

// Lookup returns the exercise with the given id.
func (l *CachedLookup) Lookup(ctx context.Context, id string) (types.Exercise, error) {
	if l.cache != nil {
		exercise, err := l.cache.Get(ctx, id)
		if err == nil {
			observability.RecordLookup(observability.LookupCacheHit)
			return exercise, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			l.log.Warn("exercise cache read failed", zap.String("exercise_id", id), zap.Error(err))
		}
	}

	if l.source == nil {
		observability.RecordLookup(observability.LookupUnavailable)
		return types.Exercise{}, fmt.Errorf("%w: no catalog configured", ErrUpstream)
	}

	exercise, err := l.source.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.RecordLookup(observability.LookupNotFound)
		} else {
			observability.RecordLookup(observability.LookupUnavailable)
		}
		return types.Exercise{}, err
	}
	observability.RecordLookup(observability.LookupFetched)

	if l.cache != nil {
		if _, err := l.cache.Upsert(ctx, exercise); err != nil {
			l.log.Warn("exercise cache write failed", zap.String("exercise_id", id), zap.Error(err))
		}
	}
	return exercise, nil
}
