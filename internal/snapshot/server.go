// Package snapshot serves read-only, single-instant views of the tracked
// objects over HTTP: their names, their positions now, and the conjunctions
// among them now. It keeps no sweep state.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/signalsfoundry/conjunction-sweep/core"
	"github.com/signalsfoundry/conjunction-sweep/internal/logging"
	"github.com/signalsfoundry/conjunction-sweep/internal/observability"
	"github.com/signalsfoundry/conjunction-sweep/kb"
	"github.com/signalsfoundry/conjunction-sweep/model"
	"github.com/signalsfoundry/conjunction-sweep/timectrl"
)

// Defaults for Config zero values.
const (
	DefaultObjectLimit = 200
	DefaultThresholdKm = 10.0
)

// Config bounds the work done per request.
type Config struct {
	ObjectLimit        int
	DefaultThresholdKm float64
	Workers            int
}

// Position is one entry of the positions response.
type Position struct {
	Name     string     `json:"name"`
	Position [3]float64 `json:"position"`
}

// Conjunction is one entry of the conjunctions response.
type Conjunction struct {
	Sat1     string  `json:"sat1"`
	Sat2     string  `json:"sat2"`
	Distance float64 `json:"distance"`
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the source of "now".
func WithClock(c timectrl.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithDetector overrides the default k-d tree detector.
func WithDetector(d core.Detector) Option {
	return func(s *Server) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCollector records request metrics and exposes /metrics.
func WithCollector(c *observability.QueryCollector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithConfig overrides the request bounds.
func WithConfig(cfg Config) Option {
	return func(s *Server) {
		if cfg.ObjectLimit > 0 {
			s.cfg.ObjectLimit = cfg.ObjectLimit
		}
		if cfg.DefaultThresholdKm > 0 {
			s.cfg.DefaultThresholdKm = cfg.DefaultThresholdKm
		}
		if cfg.Workers > 0 {
			s.pool = core.NewWorkerPool(cfg.Workers)
		}
	}
}

// Server answers snapshot queries by propagating and detecting on demand.
type Server struct {
	catalog  CatalogFunc
	prop     core.Propagator
	detector core.Detector
	pool     *core.WorkerPool
	clock    timectrl.Clock
	log      logging.Logger
	metrics  *observability.QueryCollector
	cfg      Config
}

// NewServer builds a Server over the given catalog and propagator.
func NewServer(catalog CatalogFunc, prop core.Propagator, opts ...Option) *Server {
	s := &Server{
		catalog:  catalog,
		prop:     prop,
		detector: core.KDTreeDetector{},
		pool:     core.NewWorkerPool(0),
		clock:    timectrl.WallClock{},
		log:      logging.Noop(),
		cfg: Config{
			ObjectLimit:        DefaultObjectLimit,
			DefaultThresholdKm: DefaultThresholdKm,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in logging and metrics
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /readyz", s.readyz)
	mux.HandleFunc("GET /api/satellites", s.satellites)
	mux.HandleFunc("GET /api/positions", s.positions)
	mux.HandleFunc("GET /api/conjunctions", s.conjunctions)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var h http.Handler = mux
	h = s.metrics.Middleware(routeLabel, h)
	h = s.logRequests(h)
	return h
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "snapshot server listening", logging.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown snapshot server: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	c, err := s.catalog(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "objects": c.Len()})
}

func (s *Server) satellites(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}
	names := c.Designators()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) positions(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}
	objects := c.Head(s.cfg.ObjectLimit).Objects()
	batch := s.propagate(r.Context(), objects)

	out := make([]Position, 0, len(batch.States))
	for k, sv := range batch.States {
		out = append(out, Position{
			Name:     objects[batch.Index[k]].Designator,
			Position: [3]float64(sv.Position),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) conjunctions(w http.ResponseWriter, r *http.Request) {
	threshold := s.cfg.DefaultThresholdKm
	if raw := r.URL.Query().Get("threshold_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			writeError(w, http.StatusBadRequest, "threshold_km must be a positive number")
			return
		}
		threshold = v
	}

	c, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}
	objects := c.Head(s.cfg.ObjectLimit).Objects()
	batch := s.propagate(r.Context(), objects)

	found := batch.Conjunctions(s.detector, threshold)
	out := make([]Conjunction, 0, len(found))
	for _, f := range found {
		ev := model.NewConjunctionEvent(batch.Instant, objects[f.A].Designator, objects[f.B].Designator, f.DistanceKm)
		out = append(out, Conjunction{Sat1: ev.Sat1, Sat2: ev.Sat2, Distance: ev.DistanceKm})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sat1 != out[j].Sat1 {
			return out[i].Sat1 < out[j].Sat1
		}
		return out[i].Sat2 < out[j].Sat2
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) loadCatalog(w http.ResponseWriter, r *http.Request) (*kb.Catalog, bool) {
	c, err := s.catalog(r.Context())
	if err != nil {
		logger(r.Context(), s.log).Error(r.Context(), "load catalog failed", logging.Err(err))
		writeError(w, http.StatusBadGateway, "orbital data unavailable")
		return nil, false
	}
	s.metrics.SetTrackedObjects(c.Len())
	return c, true
}

func (s *Server) propagate(ctx context.Context, objects []model.TrackedObject) core.Batch {
	at := s.clock.Now()
	batch := s.pool.Propagate(s.prop, objects, at)
	if n := len(batch.Failures); n > 0 {
		logger(ctx, s.log).Debug(ctx, "objects omitted after propagation failure",
			logging.Int("failed", n),
			logging.Time("instant", at),
		)
	}
	return batch
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
