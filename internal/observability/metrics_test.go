package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMiddlewareRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewQueryCollector(reg)
	if err != nil {
		t.Fatalf("NewQueryCollector: %v", err)
	}

	route := func(*http.Request) string { return "/api/positions" }
	h := collector.Middleware(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/positions", nil))

	if got := testutil.ToFloat64(collector.Requests.WithLabelValues("/api/positions", "GET", "200")); got != 1 {
		t.Fatalf("snapshot_http_requests_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "snapshot_http_request_duration_seconds", map[string]string{
		"route":  "/api/positions",
		"method": "GET",
	}); count != 1 {
		t.Fatalf("snapshot_http_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestMiddlewareRecordsErrorStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewQueryCollector(reg)
	if err != nil {
		t.Fatalf("NewQueryCollector: %v", err)
	}

	route := func(*http.Request) string { return "/api/conjunctions" }
	h := collector.Middleware(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad threshold", http.StatusBadRequest)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/conjunctions?threshold_km=x", nil))

	if got := testutil.ToFloat64(collector.Requests.WithLabelValues("/api/conjunctions", "GET", "400")); got != 1 {
		t.Fatalf("snapshot_http_requests_total 400 label = %v, want 1", got)
	}
}

func TestCollectorsReuseExistingRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSweepCollector(reg)
	if err != nil {
		t.Fatalf("NewSweepCollector: %v", err)
	}
	second, err := NewSweepCollector(reg)
	if err != nil {
		t.Fatalf("second NewSweepCollector: %v", err)
	}
	first.InstantsTotal.Inc()
	if got := testutil.ToFloat64(second.InstantsTotal); got != 1 {
		t.Fatalf("shared sweep_instants_total = %v, want 1", got)
	}
}

func TestSweepCollectorObserveInstant(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSweepCollector(reg)
	if err != nil {
		t.Fatalf("NewSweepCollector: %v", err)
	}
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	collector.SetTrackedObjects(200)
	collector.ObserveInstant(at, 2, 3, 10*time.Millisecond)
	collector.ObserveInstant(at.Add(time.Minute), 0, 1, 5*time.Millisecond)

	if got := testutil.ToFloat64(collector.InstantsTotal); got != 2 {
		t.Fatalf("sweep_instants_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.EventsTotal); got != 4 {
		t.Fatalf("sweep_conjunction_events_total = %v, want 4", got)
	}
	if got := testutil.ToFloat64(collector.PropagationFailuresTotal); got != 2 {
		t.Fatalf("sweep_propagation_failures_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.TrackedObjects); got != 200 {
		t.Fatalf("sweep_tracked_objects = %v, want 200", got)
	}
	if got := testutil.ToFloat64(collector.LastInstant); got != float64(at.Add(time.Minute).Unix()) {
		t.Fatalf("sweep_last_committed_instant_seconds = %v", got)
	}
	if count := histogramSampleCount(t, reg, "sweep_step_duration_seconds", nil); count != 2 {
		t.Fatalf("sweep_step_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var sc *SweepCollector
	sc.SetTrackedObjects(1)
	sc.ObserveInstant(time.Now(), 0, 0, 0)

	var qc *QueryCollector
	qc.SetTrackedObjects(1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if got := qc.Middleware(nil, next); got == nil {
		t.Fatalf("nil collector middleware returned nil handler")
	}
}

func TestMetricsHandlerExposesSweepAndQueryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	sweep, err := NewSweepCollector(reg)
	if err != nil {
		t.Fatalf("NewSweepCollector: %v", err)
	}
	query, err := NewQueryCollector(reg)
	if err != nil {
		t.Fatalf("NewQueryCollector: %v", err)
	}
	sweep.ObserveInstant(time.Unix(0, 0), 0, 0, time.Millisecond)
	query.SetTrackedObjects(7)
	query.Requests.WithLabelValues("/api/satellites", "GET", "200").Inc()

	rr := httptest.NewRecorder()
	query.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"sweep_instants_total",
		"sweep_step_duration_seconds",
		"snapshot_http_requests_total",
		"snapshot_tracked_objects 7",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
