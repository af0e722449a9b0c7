package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	ticksTotal       prometheus.Counter
	tickErrorsTotal  prometheus.Counter
	jobsClaimedTotal prometheus.Counter
	tickDuration     prometheus.Histogram

	jobsInFlight          prometheus.Gauge
	pipelineOutcomesTotal *prometheus.CounterVec
	sendDuration          prometheus.Histogram

	staleJobsFailedTotal prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// Metrics that fail to register become no-op collectors.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}

	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crondonkey_ticks_total",
		Help: "Total number of dispatch loop ticks processed.",
	})
	s.tickErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crondonkey_tick_errors_total",
		Help: "Total number of dispatch loop tick errors.",
	})
	s.jobsClaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crondonkey_jobs_claimed_total",
		Help: "Total number of due jobs claimed for dispatch.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "crondonkey_tick_duration_seconds",
		Help:    "Duration of each dispatch loop tick in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	s.jobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crondonkey_jobs_in_flight",
		Help: "Number of jobs currently in the send pipeline.",
	})
	s.pipelineOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crondonkey_pipeline_outcomes_total",
		Help: "Total number of per-job pipeline outcomes.",
	}, []string{"outcome"})
	s.sendDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "crondonkey_send_duration_seconds",
		Help:    "Mail provider submission latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.staleJobsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crondonkey_stale_jobs_failed_total",
		Help: "Total number of stuck processing jobs failed by the reconciler.",
	})

	s.register(reg, s.ticksTotal, "crondonkey_ticks_total")
	s.register(reg, s.tickErrorsTotal, "crondonkey_tick_errors_total")
	s.register(reg, s.jobsClaimedTotal, "crondonkey_jobs_claimed_total")
	s.register(reg, s.tickDuration, "crondonkey_tick_duration_seconds")
	s.register(reg, s.jobsInFlight, "crondonkey_jobs_in_flight")
	s.register(reg, s.pipelineOutcomesTotal, "crondonkey_pipeline_outcomes_total")
	s.register(reg, s.sendDuration, "crondonkey_send_duration_seconds")
	s.register(reg, s.staleJobsFailedTotal, "crondonkey_stale_jobs_failed_total")

	return s
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) TickStarted() {
	s.ticksTotal.Inc()
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, jobsClaimed int, err error) {
	s.tickDuration.Observe(duration.Seconds())
	s.jobsClaimedTotal.Add(float64(jobsClaimed))
	if err != nil {
		s.tickErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) JobsInFlightIncr() {
	s.jobsInFlight.Inc()
}

func (s *PrometheusSink) JobsInFlightDecr() {
	s.jobsInFlight.Dec()
}

func (s *PrometheusSink) PipelineOutcome(outcome string) {
	s.pipelineOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) SendCompleted(duration time.Duration) {
	s.sendDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) StaleJobsFailed(count int) {
	s.staleJobsFailedTotal.Add(float64(count))
}
