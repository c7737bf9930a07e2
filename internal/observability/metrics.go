package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// QueryCollector bundles Prometheus metrics for the snapshot query layer and
// provides helpers to wire them into HTTP handlers.
type QueryCollector struct {
	gatherer prometheus.Gatherer

	Requests  *prometheus.CounterVec
	Durations *prometheus.HistogramVec

	TrackedObjects prometheus.Gauge
}

// NewQueryCollector registers query-layer metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewQueryCollector(reg prometheus.Registerer) (*QueryCollector, error) {
	reg, gatherer := resolve(reg)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_http_requests_total",
		Help: "Total number of snapshot API requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"})
	requests, err := registerCounterVec(reg, requests, "snapshot_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snapshot_http_request_duration_seconds",
		Help:    "Snapshot API request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route", "method"})
	durations, err = registerHistogramVec(reg, durations, "snapshot_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	tracked, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snapshot_tracked_objects",
		Help: "Number of tracked objects served by the snapshot API.",
	}), "snapshot_tracked_objects")
	if err != nil {
		return nil, err
	}

	return &QueryCollector{
		gatherer:       gatherer,
		Requests:       requests,
		Durations:      durations,
		TrackedObjects: tracked,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *QueryCollector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return handlerFor(c.gatherer)
}

// SetTrackedObjects updates the tracked object gauge.
func (c *QueryCollector) SetTrackedObjects(n int) {
	if c == nil || c.TrackedObjects == nil {
		return
	}
	c.TrackedObjects.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration. route maps a request to a
// bounded label so unknown paths do not explode cardinality.
func (c *QueryCollector) Middleware(route func(*http.Request) string, next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sr, r)

		label := r.URL.Path
		if route != nil {
			label = route(r)
		}
		c.Requests.WithLabelValues(label, r.Method, strconv.Itoa(sr.statusCode)).Inc()
		c.Durations.WithLabelValues(label, r.Method).Observe(time.Since(start).Seconds())
	})
}

func resolve(reg prometheus.Registerer) (prometheus.Registerer, prometheus.Gatherer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	return reg, gatherer
}

func handlerFor(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
