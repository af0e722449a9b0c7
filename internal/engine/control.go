package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
)

type ControlStore interface {
	GetEngineState(ctx context.Context) (domain.EngineState, error)
	SetEngineRunning(ctx context.Context, running bool, now time.Time) error
	PauseEngine(ctx context.Context, now time.Time) (int64, error)
	ResumeEngine(ctx context.Context, delta time.Duration, now time.Time) (int64, error)
}

// Control is the operator-facing side of the engine: the crondonkey
// run/pause toggles. All engine-state mutation goes through here; the
// dispatch loop itself only reads.
type Control struct {
	store ControlStore
	clock func() time.Time
}

func NewControl(store ControlStore) *Control {
	return &Control{store: store, clock: time.Now}
}

// Status returns the current engine state.
func (c *Control) Status(ctx context.Context) (domain.EngineState, error) {
	return c.store.GetEngineState(ctx)
}

// SetRunning starts or stops polling. Stopping never mutates job state;
// in-flight sends finish normally.
func (c *Control) SetRunning(ctx context.Context, running bool) error {
	if err := c.store.SetEngineRunning(ctx, running, c.clock().UTC()); err != nil {
		return fmt.Errorf("set running: %w", err)
	}
	log.Printf("engine: running=%t", running)
	return nil
}

// Pause stamps paused_at and converts every pending job to paused.
// Jobs already claimed as processing are allowed to finish.
func (c *Control) Pause(ctx context.Context) (int64, error) {
	paused, err := c.store.PauseEngine(ctx, c.clock().UTC())
	if err != nil {
		return 0, err
	}
	log.Printf("engine: paused (%d jobs held)", paused)
	return paused, nil
}

// Resume shifts every paused job's schedule forward by the pause duration
// and releases it back to pending. The shift preserves the relative spacing
// between jobs; collapsing them to "now" would thundering-herd the provider.
func (c *Control) Resume(ctx context.Context) (int64, error) {
	state, err := c.store.GetEngineState(ctx)
	if err != nil {
		return 0, fmt.Errorf("get engine state: %w", err)
	}
	if !state.IsPaused || state.PausedAt == nil {
		return 0, fmt.Errorf("%w: engine is not paused", ErrTransitionDenied)
	}

	now := c.clock().UTC()
	delta := ResumeShift(now, *state.PausedAt)

	resumed, err := c.store.ResumeEngine(ctx, delta, now)
	if err != nil {
		return 0, err
	}
	log.Printf("engine: resumed (%d jobs shifted by %s)", resumed, delta)
	return resumed, nil
}
