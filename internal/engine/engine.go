// Package engine runs the crondonkey dispatch loop: while the engine is
// running and not paused, it periodically claims due jobs and hands each to
// the send pipeline with bounded concurrency.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
	"github.com/truesoulcoder/crm-admin-sub001/internal/metrics"
)

// ErrTransitionDenied is returned when a guarded state update would leave
// the allowed transition graph (e.g. resuming an engine that is not paused,
// or re-marking a job already in a terminal state).
var ErrTransitionDenied = errors.New("state transition denied")

type Store interface {
	GetEngineState(ctx context.Context) (domain.EngineState, error)
	ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]domain.CampaignJob, error)
	GetActiveSenders(ctx context.Context) ([]domain.Sender, error)
}

// Processor owns the per-job send pipeline, including result marking and
// send-log writes. It must never panic across the boundary.
type Processor interface {
	Process(ctx context.Context, job domain.CampaignJob)
}

type Config struct {
	// Tick interval is drawn uniformly from [MinInterval, MaxInterval] each
	// cycle to avoid bursty provider-side rate limiting.
	MinInterval time.Duration
	MaxInterval time.Duration

	// ClaimLimit caps how many due jobs one tick takes on.
	ClaimLimit int

	// JobTimeout bounds one trip through the send pipeline.
	JobTimeout time.Duration
}

type Engine struct {
	config    Config
	store     Store
	processor Processor
	metrics   metrics.Sink // optional, nil = disabled
	clock     func() time.Time
	interval  func(min, max time.Duration) time.Duration
}

func New(config Config, store Store, processor Processor) *Engine {
	if config.ClaimLimit <= 0 {
		config.ClaimLimit = 10
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 90 * time.Second
	}
	return &Engine{
		config:    config,
		store:     store,
		processor: processor,
		clock:     time.Now,
		interval:  randomInterval,
	}
}

// WithMetrics attaches a metrics sink to the engine.
func (e *Engine) WithMetrics(sink metrics.Sink) *Engine {
	e.metrics = sink
	return e
}

// Run drives the dispatch loop until ctx is cancelled. In-flight jobs from
// the current tick complete before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	log.Printf("crondonkey: started (interval=%s..%s, claim_limit=%d)",
		e.config.MinInterval, e.config.MaxInterval, e.config.ClaimLimit)

	timer := time.NewTimer(e.interval(e.config.MinInterval, e.config.MaxInterval))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("crondonkey: stopped")
			return ctx.Err()
		case <-timer.C:
			if err := e.tick(ctx); err != nil {
				log.Printf("crondonkey: tick error: %v", err)
			}
			timer.Reset(e.interval(e.config.MinInterval, e.config.MaxInterval))
		}
	}
}

// Tick runs one dispatch cycle. Exposed so tests and operator tooling can
// drive the loop deterministically.
func (e *Engine) Tick(ctx context.Context) error {
	return e.tick(ctx)
}

func (e *Engine) tick(ctx context.Context) error {
	if e.metrics != nil {
		e.metrics.TickStarted()
	}
	started := e.clock()

	claimed, err := e.dispatchDue(ctx)

	if e.metrics != nil {
		e.metrics.TickCompleted(e.clock().Sub(started), claimed, err)
	}
	return err
}

func (e *Engine) dispatchDue(ctx context.Context) (int, error) {
	state, err := e.store.GetEngineState(ctx)
	if err != nil {
		return 0, fmt.Errorf("get engine state: %w", err)
	}
	if !state.IsRunning || state.IsPaused {
		return 0, nil
	}

	senders, err := e.store.GetActiveSenders(ctx)
	if err != nil {
		return 0, fmt.Errorf("get senders: %w", err)
	}

	now := e.clock().UTC()
	jobs, err := e.store.ClaimDueJobs(ctx, now, e.config.ClaimLimit)
	if err != nil {
		return 0, fmt.Errorf("claim jobs: %w", err)
	}
	if len(jobs) == 0 {
		// Nothing due; a normal, silent outcome.
		return 0, nil
	}

	// Concurrency never exceeds the number of active mailboxes so one
	// sender's rate limits are never stacked. With no senders at all the
	// jobs still run (serially) so they fail visibly in the log.
	workers := len(senders)
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	log.Printf("crondonkey: claimed %d due jobs (workers=%d)", len(jobs), workers)

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(job domain.CampaignJob) {
			defer wg.Done()
			defer func() { <-sem }()

			if e.metrics != nil {
				e.metrics.JobsInFlightIncr()
				defer e.metrics.JobsInFlightDecr()
			}

			jobCtx, cancel := context.WithTimeout(ctx, e.config.JobTimeout)
			defer cancel()
			e.processor.Process(jobCtx, job)
		}(job)
	}
	wg.Wait()

	return len(jobs), nil
}

// ResumeShift computes how far a resumed job's schedule moves: the full
// pause duration. Pure so the delta invariant is directly testable.
func ResumeShift(now, pausedAt time.Time) time.Duration {
	if pausedAt.IsZero() || now.Before(pausedAt) {
		return 0
	}
	return now.Sub(pausedAt)
}

func randomInterval(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}
