package domain

import "time"

// EngineState is the singleton control row for the dispatch loop.
// is_running gates polling entirely; is_paused keeps the loop alive but
// converts pending jobs to paused until resume delta-shifts them back.
type EngineState struct {
	IsRunning bool
	IsPaused  bool
	PausedAt  *time.Time

	UpdatedAt time.Time
}
