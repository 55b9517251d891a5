package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSummaryCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewSummaryCache(client, time.Hour)
	ctx := context.Background()

	summary := Summary{
		RunID:       "run-1",
		Marketplace: MarketplaceOzon,
		Total:       10,
		Changed:     3,
		StartedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, cache.Store(ctx, summary))

	got, err := cache.Last(ctx, MarketplaceOzon)
	require.NoError(t, err)
	require.Equal(t, summary.RunID, got.RunID)
	require.Equal(t, summary.Changed, got.Changed)
	require.True(t, summary.StartedAt.Equal(got.StartedAt))
}

func TestSummaryCacheMissing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewSummaryCache(client, time.Hour)

	_, err := cache.Last(context.Background(), MarketplaceYandex)
	require.ErrorIs(t, err, ErrSummaryNotFound)
}

func TestSummaryCacheNilIsNoop(t *testing.T) {
	var cache *SummaryCache
	require.NoError(t, cache.Store(context.Background(), Summary{}))
	_, err := cache.Last(context.Background(), MarketplaceOzon)
	require.ErrorIs(t, err, ErrSummaryNotFound)
}
