// Package sweep drives conjunction detection across the instants of a sweep
// window and hands every instant's events to the event store.
package sweep

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/conjunction-sweep/core"
	"github.com/signalsfoundry/conjunction-sweep/internal/logging"
	"github.com/signalsfoundry/conjunction-sweep/internal/observability"
	"github.com/signalsfoundry/conjunction-sweep/kb"
	"github.com/signalsfoundry/conjunction-sweep/model"
	"github.com/signalsfoundry/conjunction-sweep/timectrl"
)

// Committer durably records one instant's events together with the run's
// progress marker, all or nothing. Calls arrive strictly in instant order and
// never overlap.
type Committer interface {
	CommitStep(ctx context.Context, commit model.StepCommit) error
}

// StepReport describes one completed instant. It is produced for every
// instant, including those with no events.
type StepReport struct {
	RunID      string
	Instant    time.Time
	Propagated int
	Failed     int
	Events     []model.ConjunctionEvent
	Duration   time.Duration
}

// Listener receives a StepReport after each instant is committed.
type Listener func(StepReport)

// Summary totals a finished (or interrupted) Run.
type Summary struct {
	Instants    int64
	Events      int64
	Failures    int64
	LastInstant time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDetector overrides the default k-d tree detector.
func WithDetector(d core.Detector) Option {
	return func(s *Scheduler) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithWorkers sets the size of the per-instant propagation pool.
func WithWorkers(n int) Option {
	return func(s *Scheduler) { s.pool = core.NewWorkerPool(n) }
}

// WithLogger sets the logger used for step status and failures.
func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCollector records sweep metrics.
func WithCollector(c *observability.SweepCollector) Option {
	return func(s *Scheduler) { s.metrics = c }
}

// WithTracer overrides the tracer used for per-instant spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithListener registers a step-completion listener.
func WithListener(fn Listener) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}

// WithRunID tags commits, reports and log lines with a run identifier.
func WithRunID(id string) Option {
	return func(s *Scheduler) { s.runID = id }
}

// Scheduler is the sweep state machine: for each instant of the window it
// propagates every tracked object, detects pairs within the threshold and
// commits the resulting events before moving on.
type Scheduler struct {
	objects  []model.TrackedObject
	window   model.SweepWindow
	prop     core.Propagator
	detector core.Detector
	store    Committer
	pool     *core.WorkerPool

	runID     string
	log       logging.Logger
	metrics   *observability.SweepCollector
	tracer    trace.Tracer
	listeners []Listener
}

// NewScheduler validates the window and wires the collaborators. The catalog
// is the fixed object set for the whole sweep.
func NewScheduler(catalog *kb.Catalog, window model.SweepWindow, prop core.Propagator, store Committer, opts ...Option) (*Scheduler, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, errors.New("sweep: nil propagator")
	}
	if store == nil {
		return nil, errors.New("sweep: nil event store")
	}
	s := &Scheduler{
		objects:  catalog.Objects(),
		window:   window,
		prop:     prop,
		detector: core.KDTreeDetector{},
		store:    store,
		pool:     core.NewWorkerPool(0),
		log:      logging.Noop(),
		tracer:   observability.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runID != "" {
		s.log = s.log.With(logging.String("run_id", s.runID))
	}
	return s, nil
}

// Window returns the configured sweep window.
func (s *Scheduler) Window() model.SweepWindow { return s.window }

// Run sweeps the whole window from its start.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	return s.run(ctx, timectrl.NewSweepClock(s.window))
}

// Resume sweeps the instants strictly after last, the last instant a previous
// run committed.
func (s *Scheduler) Resume(ctx context.Context, last time.Time) (Summary, error) {
	clock := timectrl.NewSweepClock(s.window)
	clock.ResumeAfter(last)
	return s.run(ctx, clock)
}

func (s *Scheduler) run(ctx context.Context, clock *timectrl.SweepClock) (Summary, error) {
	var sum Summary
	s.metrics.SetTrackedObjects(len(s.objects))
	s.log.Info(ctx, "sweep starting",
		logging.Int("objects", len(s.objects)),
		logging.Time("start", clock.Now()),
		logging.Time("end", s.window.End),
		logging.Duration("step", s.window.Step),
		logging.Float64("threshold_km", s.window.ThresholdKm),
		logging.Int64("instants", clock.Remaining()),
		logging.Int("workers", s.pool.Workers()),
	)

	err := clock.Run(ctx, func(ctx context.Context, at time.Time) error {
		// A started step always finishes, so its commit is never torn by a
		// cancellation.
		report, err := s.Step(context.WithoutCancel(ctx), at)
		if err != nil {
			return err
		}
		sum.Instants++
		sum.Events += int64(len(report.Events))
		sum.Failures += int64(report.Failed)
		sum.LastInstant = at
		return nil
	})

	fields := []logging.Field{
		logging.Int64("instants", sum.Instants),
		logging.Int64("events", sum.Events),
		logging.Int64("propagation_failures", sum.Failures),
	}
	switch {
	case err == nil:
		s.log.Info(ctx, "sweep completed", fields...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.log.Warn(ctx, "sweep cancelled", append(fields, logging.Time("last_instant", sum.LastInstant))...)
	default:
		s.log.Error(ctx, "sweep aborted", append(fields, logging.Err(err))...)
	}
	return sum, err
}

// Step evaluates a single instant: propagate, detect, commit, notify. A
// commit failure is returned as *PersistenceError; propagation failures are
// only reported.
func (s *Scheduler) Step(ctx context.Context, at time.Time) (StepReport, error) {
	began := time.Now()
	ctx, span := s.tracer.Start(ctx, "sweep.instant", trace.WithAttributes(
		attribute.String("sweep.instant", at.UTC().Format(time.RFC3339)),
		attribute.Int("sweep.objects", len(s.objects)),
	))
	defer span.End()

	batch := s.pool.Propagate(s.prop, s.objects, at)
	for _, f := range batch.Failures {
		s.log.Warn(ctx, "propagation failed",
			logging.String("designator", f.Designator),
			logging.Time("instant", at),
			logging.Int("code", f.Code),
			logging.Err(f.Err),
		)
	}

	events := s.events(at, batch.Conjunctions(s.detector, s.window.ThresholdKm))

	commit := model.StepCommit{RunID: s.runID, Instant: at.UTC(), Events: events}
	if err := s.store.CommitStep(ctx, commit); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return StepReport{}, &PersistenceError{Instant: at, Err: err}
	}

	report := StepReport{
		RunID:      s.runID,
		Instant:    at,
		Propagated: len(batch.Positions),
		Failed:     len(batch.Failures),
		Events:     events,
		Duration:   time.Since(began),
	}
	span.SetAttributes(
		attribute.Int("sweep.propagated", report.Propagated),
		attribute.Int("sweep.failed", report.Failed),
		attribute.Int("sweep.events", len(events)),
	)
	s.metrics.ObserveInstant(at, report.Failed, len(events), report.Duration)

	if len(events) == 0 {
		s.log.Debug(ctx, "no conjunctions detected", logging.Time("instant", at))
	}
	for _, ev := range events {
		s.log.Info(ctx, "conjunction detected",
			logging.Time("instant", at),
			logging.String("sat1", ev.Sat1),
			logging.String("sat2", ev.Sat2),
			logging.Float64("distance_km", ev.DistanceKm),
		)
	}
	for _, fn := range s.listeners {
		fn(report)
	}
	return report, nil
}

func (s *Scheduler) events(at time.Time, found []core.Conjunction) []model.ConjunctionEvent {
	if len(found) == 0 {
		return nil
	}
	events := make([]model.ConjunctionEvent, 0, len(found))
	for _, c := range found {
		events = append(events, model.NewConjunctionEvent(at,
			s.objects[c.A].Designator, s.objects[c.B].Designator, c.DistanceKm))
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Sat1 != events[j].Sat1 {
			return events[i].Sat1 < events[j].Sat1
		}
		return events[i].Sat2 < events[j].Sat2
	})
	return events
}
