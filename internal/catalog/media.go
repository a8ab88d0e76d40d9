package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fittrack/apiserver/internal/storage"
	"github.com/fittrack/apiserver/types"
	"go.uber.org/zap"
)

// Lookuper resolves exercise metadata.
type Lookuper interface {
	Lookup(ctx context.Context, id string) (types.Exercise, error)
}

// MediaFetcher downloads media bytes.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Media is an exercise demonstration ready to serve.
type Media struct {
	Body        io.ReadCloser
	ContentType string
}

// MediaMirror serves exercise media from object storage, copying it from
// the catalog on first request. With no storage it proxies the catalog.
type MediaMirror struct {
	store   *storage.Storage
	lookup  Lookuper
	fetcher MediaFetcher
	log     *zap.Logger
}

// NewMediaMirror constructs a MediaMirror. store may be nil.
func NewMediaMirror(store *storage.Storage, lookup Lookuper, fetcher MediaFetcher, log *zap.Logger) *MediaMirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &MediaMirror{store: store, lookup: lookup, fetcher: fetcher, log: log.Named("media")}
}

func mediaKey(exerciseID string) string {
	return "exercises/" + exerciseID + ".gif"
}

// Open returns the media for an exercise. The caller closes Body. An empty
// mirrored object is evicted and copied again.
func (m *MediaMirror) Open(ctx context.Context, exerciseID string) (Media, error) {
	key := mediaKey(exerciseID)
	if m.store != nil {
		obj, err := m.store.Get(ctx, key)
		if err == nil && obj.Size == 0 {
			_ = obj.Body.Close()
			m.log.Warn("evicting empty mirrored media", zap.String("key", key))
			if err := m.store.Delete(ctx, key); err != nil {
				m.log.Warn("media evict failed", zap.String("key", key), zap.Error(err))
			}
			err = storage.ErrNotExist
		}
		if err == nil {
			contentType := obj.ContentType
			if contentType == "" {
				contentType = "image/gif"
			}
			return Media{Body: obj.Body, ContentType: contentType}, nil
		}
		if !errors.Is(err, storage.ErrNotExist) {
			m.log.Warn("media read failed", zap.String("key", key), zap.Error(err))
		}
	}

	exercise, err := m.lookup.Lookup(ctx, exerciseID)
	if err != nil {
		return Media{}, err
	}
	if exercise.GifURL == "" {
		return Media{}, fmt.Errorf("exercise %s has no media: %w", exerciseID, ErrNotFound)
	}

	data, contentType, err := m.fetcher.FetchMedia(ctx, exercise.GifURL)
	if err != nil {
		return Media{}, err
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	if m.store != nil && len(data) > 0 {
		if err := m.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			m.log.Warn("media mirror write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return Media{Body: io.NopCloser(bytes.NewReader(data)), ContentType: contentType}, nil
}
