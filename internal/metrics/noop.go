package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickStarted()                                                     {}
func (n *NoopSink) TickCompleted(duration time.Duration, jobsClaimed int, err error) {}
func (n *NoopSink) JobsInFlightIncr()                                                {}
func (n *NoopSink) JobsInFlightDecr()                                                {}
func (n *NoopSink) PipelineOutcome(outcome string)                                   {}
func (n *NoopSink) SendCompleted(duration time.Duration)                             {}
func (n *NoopSink) StaleJobsFailed(count int)                                        {}
