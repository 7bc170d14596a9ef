package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel/internal/complaint"
)

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "test:analytics", time.Minute), mr
}

func TestRedisCacheRoundTripAndInvalidate(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	_, gen, err := cache.Get(ctx, 6)
	require.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, Generation(0), gen)

	require.NoError(t, cache.Set(ctx, gen, 6, Summary{Total: 3}))
	got, _, err := cache.Get(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, time.Minute, mr.TTL("test:analytics:summary:0:6"))

	require.NoError(t, cache.Invalidate(ctx))
	_, gen, err = cache.Get(ctx, 6)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, Generation(1), gen)
}

// hookSource runs during the first List call, after the snapshot is taken.
type hookSource struct {
	items  []complaint.Complaint
	during func()
}

func (s *hookSource) List(_ context.Context, _ complaint.Filter) ([]complaint.Complaint, error) {
	snapshot := append([]complaint.Complaint(nil), s.items...)
	if s.during != nil {
		hook := s.during
		s.during = nil
		hook()
	}
	return snapshot, nil
}

func TestSummaryComputedBeforeInvalidationIsNotServedAfterIt(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()
	src := &hookSource{}
	svc := NewService(src, cache)

	src.during = func() {
		src.items = append(src.items, complaint.Complaint{ID: "c1", Category: complaint.CategoryMess,
			Status: complaint.StatusPending, SubmittedAt: time.Now()})
		require.NoError(t, svc.Notify(ctx, complaint.Event{Type: complaint.EventCreated}))
	}

	first, err := svc.Summary(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Total, "snapshot predates the write")

	next, err := svc.Summary(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Total)
}
