// Package reconciler fails stale processing jobs.
//
// A job is stale when it has status='processing' but its pipeline run
// died without recording an outcome (crash, kill, lost DB connection).
// Claimed jobs must always finish as sent or failed, so the reconciler
// periodically sweeps processing rows older than a threshold and marks
// them failed. Stale jobs are never re-dispatched: a send may or may not
// have left the building, and retrying risks a duplicate email.
package reconciler

import (
	"context"
	"log"
	"time"

	"github.com/truesoulcoder/crm-admin-sub001/internal/metrics"
)

const staleReason = "reconciler: processing exceeded stale threshold"

// Store defines the interface for sweeping stale jobs.
type Store interface {
	FailStaleJobs(ctx context.Context, olderThan time.Time, limit int, reason string, now time.Time) (int64, error)
}

// Config holds reconciler configuration.
type Config struct {
	// Interval is how often the reconciler runs.
	// Default: 5 minutes.
	Interval time.Duration

	// Threshold is the age after which a processing job is considered stale.
	// Must comfortably exceed the per-job pipeline timeout.
	// Default: 10 minutes.
	Threshold time.Duration

	// BatchSize is the maximum number of stale jobs to fail per cycle.
	// Default: 100.
	BatchSize int
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  5 * time.Minute,
		Threshold: 10 * time.Minute,
		BatchSize: 100,
	}
}

// Reconciler sweeps stale processing jobs into the failed state.
type Reconciler struct {
	config  Config
	store   Store
	metrics metrics.Sink
	clock   func() time.Time
}

// New creates a new Reconciler.
func New(config Config, store Store) *Reconciler {
	return &Reconciler{
		config:  config,
		store:   store,
		metrics: metrics.NewNoopSink(),
		clock:   time.Now,
	}
}

// WithMetrics sets the metrics sink.
func (r *Reconciler) WithMetrics(sink metrics.Sink) *Reconciler {
	r.metrics = sink
	return r
}

// Run starts the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	log.Printf("reconciler: started (interval=%s, threshold=%s, batch=%d)",
		r.config.Interval, r.config.Threshold, r.config.BatchSize)

	// Run immediately on startup, then on ticker
	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler: stopped")
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle executes one reconciliation cycle.
func (r *Reconciler) runCycle(ctx context.Context) {
	now := r.clock().UTC()
	olderThan := now.Add(-r.config.Threshold)

	failed, err := r.store.FailStaleJobs(ctx, olderThan, r.config.BatchSize, staleReason, now)
	if err != nil {
		// DB error: log and abort cycle. Will retry next interval.
		log.Printf("reconciler: sweep failed: %v", err)
		return
	}

	if failed == 0 {
		// Nothing to do. Silent success.
		return
	}

	r.metrics.StaleJobsFailed(int(failed))
	log.Printf("reconciler: failed %d stale processing jobs (older than %s)",
		failed, olderThan.Format(time.RFC3339))
}
