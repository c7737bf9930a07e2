package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweepCollector exposes sweep-engine Prometheus metrics.
type SweepCollector struct {
	gatherer prometheus.Gatherer

	InstantsTotal            prometheus.Counter
	EventsTotal              prometheus.Counter
	PropagationFailuresTotal prometheus.Counter
	StepDuration             prometheus.Histogram
	TrackedObjects           prometheus.Gauge
	LastInstant              prometheus.Gauge
}

// NewSweepCollector registers sweep metrics against the provided registerer.
func NewSweepCollector(reg prometheus.Registerer) (*SweepCollector, error) {
	reg, gatherer := resolve(reg)

	instants, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_instants_total",
		Help: "Number of sweep instants fully processed and committed.",
	}), "sweep_instants_total")
	if err != nil {
		return nil, err
	}

	events, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_conjunction_events_total",
		Help: "Number of conjunction events committed to the event store.",
	}), "sweep_conjunction_events_total")
	if err != nil {
		return nil, err
	}

	failures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_propagation_failures_total",
		Help: "Number of (object, instant) propagations excluded after a failure.",
	}), "sweep_propagation_failures_total")
	if err != nil {
		return nil, err
	}

	stepDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sweep_step_duration_seconds",
		Help:    "Wall-clock duration of one sweep instant: propagation, detection, and commit.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "sweep_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	tracked, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sweep_tracked_objects",
		Help: "Number of tracked objects in the current sweep.",
	}), "sweep_tracked_objects")
	if err != nil {
		return nil, err
	}

	last, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sweep_last_committed_instant_seconds",
		Help: "Unix time of the last committed sweep instant.",
	}), "sweep_last_committed_instant_seconds")
	if err != nil {
		return nil, err
	}

	return &SweepCollector{
		gatherer:                 gatherer,
		InstantsTotal:            instants,
		EventsTotal:              events,
		PropagationFailuresTotal: failures,
		StepDuration:             stepDuration,
		TrackedObjects:           tracked,
		LastInstant:              last,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SweepCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a /metrics handler backed by the collector's gatherer.
func (c *SweepCollector) Handler() http.Handler {
	if c == nil {
		return handlerFor(nil)
	}
	return handlerFor(c.gatherer)
}

// SetTrackedObjects records the catalog size of the running sweep.
func (c *SweepCollector) SetTrackedObjects(n int) {
	if c == nil {
		return
	}
	c.TrackedObjects.Set(float64(n))
}

// ObserveInstant records one committed instant.
func (c *SweepCollector) ObserveInstant(instant time.Time, failed, events int, took time.Duration) {
	if c == nil {
		return
	}
	c.InstantsTotal.Inc()
	c.EventsTotal.Add(float64(events))
	c.PropagationFailuresTotal.Add(float64(failed))
	c.StepDuration.Observe(took.Seconds())
	c.LastInstant.Set(float64(instant.Unix()))
}
