package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSummaryNotFound indicates no pass has run for the marketplace yet.
var ErrSummaryNotFound = fmt.Errorf("catalog: no reconcile summary")

// SummaryCache keeps the latest pass summary per marketplace in Redis.
// A nil cache stores nothing and reports every summary as missing.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache instantiates the cache helper.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl}
}

// Store writes the summary under the marketplace key.
func (c *SummaryCache) Store(ctx context.Context, summary Summary) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, summaryKey(summary.Marketplace), raw, c.ttl).Err()
}

// Last returns the most recent summary for the marketplace.
func (c *SummaryCache) Last(ctx context.Context, m Marketplace) (Summary, error) {
	if c == nil || c.client == nil {
		return Summary{}, ErrSummaryNotFound
	}
	payload, err := c.client.Get(ctx, summaryKey(m)).Bytes()
	if err == redis.Nil {
		return Summary{}, ErrSummaryNotFound
	}
	if err != nil {
		return Summary{}, err
	}
	var summary Summary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

func summaryKey(m Marketplace) string {
	return fmt.Sprintf("kazna:reconcile:last:%s", m)
}
