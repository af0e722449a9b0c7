package metrics

import "time"

// Sink defines the interface for recording engine metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate
// errors. If the metrics backend is unavailable, implementations log warnings
// and continue.
type Sink interface {
	// Dispatch loop metrics
	TickStarted()
	TickCompleted(duration time.Duration, jobsClaimed int, err error)

	// Pipeline metrics
	JobsInFlightIncr()
	JobsInFlightDecr()
	PipelineOutcome(outcome string)
	SendCompleted(duration time.Duration)

	// Reconciler metrics
	StaleJobsFailed(count int)
}

// Outcome constants for PipelineOutcome. These mirror the send-log status
// taxonomy plus the infra class that never reaches the log as a send attempt.
const (
	OutcomeSent              = "sent"
	OutcomeFailedPreparation = "failed_preparation"
	OutcomeFailedValidation  = "failed_validation"
	OutcomeFailedToSend      = "failed_to_send"
	OutcomeInfraError        = "infra_error"
)
