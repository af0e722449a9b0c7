package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestSink(t *testing.T) (*RedisSink, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisSink(client), mr
}

func TestRedisSink_RecordOutcome(t *testing.T) {
	sink, _ := newTestSink(t)
	ctx := context.Background()

	campaignID := uuid.New()
	day := time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := sink.RecordOutcome(ctx, campaignID, "kyle@truesoul.example", "sent", day); err != nil {
			t.Fatalf("RecordOutcome: %v", err)
		}
	}
	if err := sink.RecordOutcome(ctx, campaignID, "kyle@truesoul.example", "failed_to_send", day); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}

	n, err := sink.DailyCount(ctx, campaignID, "kyle@truesoul.example", "sent", day)
	if err != nil {
		t.Fatalf("DailyCount: %v", err)
	}
	if n != 3 {
		t.Errorf("sent count = %d, want 3", n)
	}

	n, err = sink.DailyCount(ctx, campaignID, "kyle@truesoul.example", "failed_to_send", day)
	if err != nil {
		t.Fatalf("DailyCount: %v", err)
	}
	if n != 1 {
		t.Errorf("failed count = %d, want 1", n)
	}
}

func TestRedisSink_MissingKeyIsZero(t *testing.T) {
	sink, _ := newTestSink(t)

	n, err := sink.DailyCount(context.Background(), uuid.New(), "nobody@x", "sent", time.Now())
	if err != nil {
		t.Fatalf("DailyCount: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestRedisSink_CountersExpire(t *testing.T) {
	sink, mr := newTestSink(t)
	sink.WithRetention(time.Hour)
	ctx := context.Background()

	campaignID := uuid.New()
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if err := sink.RecordOutcome(ctx, campaignID, "kyle@truesoul.example", "sent", day); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	n, err := sink.DailyCount(ctx, campaignID, "kyle@truesoul.example", "sent", day)
	if err != nil {
		t.Fatalf("DailyCount: %v", err)
	}
	if n != 0 {
		t.Errorf("count after TTL = %d, want 0", n)
	}
}

func TestRedisSink_DayBucketsAreUTC(t *testing.T) {
	sink, _ := newTestSink(t)
	ctx := context.Background()
	campaignID := uuid.New()

	est, _ := time.LoadLocation("America/New_York")
	// 10pm EST Aug 30 is Aug 31 UTC; both writes land in the same bucket.
	late := time.Date(2026, 8, 30, 22, 0, 0, 0, est)
	utc := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	sink.RecordOutcome(ctx, campaignID, "s@x", "sent", late)
	sink.RecordOutcome(ctx, campaignID, "s@x", "sent", utc)

	n, err := sink.DailyCount(ctx, campaignID, "s@x", "sent", utc)
	if err != nil {
		t.Fatalf("DailyCount: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2 (same UTC day bucket)", n)
	}
}
