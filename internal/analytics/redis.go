// Package analytics keeps per-day send counters in Redis.
// Counters are best-effort observability; failures never affect dispatch.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/google/uuid"
)

// DefaultRetention keeps daily counters for 90 days.
const DefaultRetention = 90 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client, retention: DefaultRetention}
}

// WithRetention overrides the counter TTL.
func (s *RedisSink) WithRetention(d time.Duration) *RedisSink {
	s.retention = d
	return s
}

// RecordOutcome increments the (campaign, sender, day, outcome) counter.
func (s *RedisSink) RecordOutcome(ctx context.Context, campaignID uuid.UUID, senderEmail, outcome string, day time.Time) error {
	key := buildKey(campaignID.String(), senderEmail, outcome, day)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// DailyCount reads one counter back; missing keys count as zero.
func (s *RedisSink) DailyCount(ctx context.Context, campaignID uuid.UUID, senderEmail, outcome string, day time.Time) (int64, error) {
	n, err := s.client.Get(ctx, buildKey(campaignID.String(), senderEmail, outcome, day)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func buildKey(campaignID, senderEmail, outcome string, day time.Time) string {
	return fmt.Sprintf("c:%s:s:%s:%s:%s", campaignID, senderEmail, outcome, day.UTC().Format("20060102"))
}
