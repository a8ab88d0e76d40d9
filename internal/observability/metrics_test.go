package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	hits := testutil.ToFloat64(catalogLookups.WithLabelValues(LookupCacheHit))
	RecordLookup(LookupCacheHit)
	require.Equal(t, hits+1, testutil.ToFloat64(catalogLookups.WithLabelValues(LookupCacheHit)))

	failed := testutil.ToFloat64(notificationsPublished.WithLabelValues("workoutDeleted", "error"))
	RecordPublish("workoutDeleted", errors.New("broker down"))
	require.Equal(t, failed+1, testutil.ToFloat64(notificationsPublished.WithLabelValues("workoutDeleted", "error")))

	SetSubscribers(3)
	require.Equal(t, 3.0, testutil.ToFloat64(subscribers))

	dropped := testutil.ToFloat64(notificationsDropped)
	RecordDropped()
	require.Equal(t, dropped+1, testutil.ToFloat64(notificationsDropped))
}
