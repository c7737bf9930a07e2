package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/conjunction-sweep/core"
	"github.com/signalsfoundry/conjunction-sweep/internal/logging"
	"github.com/signalsfoundry/conjunction-sweep/internal/observability"
	"github.com/signalsfoundry/conjunction-sweep/kb"
	"github.com/signalsfoundry/conjunction-sweep/model"
	"github.com/signalsfoundry/conjunction-sweep/sweep"
)

var sweepFlagKeys = map[string]string{
	"sweep.start":        "start",
	"sweep.duration":     "duration",
	"sweep.step":         "step",
	"sweep.threshold_km": "threshold-km",
	"sweep.object_cap":   "object-cap",
	"sweep.workers":      "workers",
	"store.path":         "db",
	"metrics.addr":       "metrics-addr",
	"provider.sources":   "sources",
	"provider.file.path": "file",
}

type sweepOptions struct {
	resume string
	quiet  bool
}

func newSweepCmd(g *globals) *cobra.Command {
	var opts sweepOptions
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a conjunction sweep and record events",
		Long: `Acquire the catalog, then propagate every object at each instant of the
window and record every pair closer than the threshold. Each instant is
committed before the next one starts, so an interrupted sweep can be
continued with --resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd, g, opts)
		},
	}
	f := cmd.Flags()
	f.String("start", "", "window start, RFC 3339 (default now)")
	f.Duration("duration", 0, "window length (default 87600h)")
	f.Duration("step", 0, "time between instants (default 1m)")
	f.Float64("threshold-km", 0, "conjunction distance threshold in km (default 10)")
	f.Int("object-cap", 0, "sweep only the first N objects, 0 for all (default 200)")
	f.Int("workers", 0, "propagation workers (default number of CPUs)")
	f.String("db", "", "event store path (default collisions.db)")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address during the sweep")
	f.StringSlice("sources", nil, "ordered provider sources: celestrak, tleapi, spacetrack, file")
	f.String("file", "", "element file for the file source")
	f.StringVar(&opts.resume, "resume", "", "continue the run with this id after its last committed instant")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress per-instant status lines")
	return cmd
}

func runSweep(cmd *cobra.Command, g *globals, opts sweepOptions) error {
	ctx := cmd.Context()
	cfg, log, err := g.load(cmd, changedOnly(cmd, sweepFlagKeys))
	if err != nil {
		return err
	}
	window, err := cfg.Window(g.now())
	if err != nil {
		return err
	}

	shutdown, err := observability.InitTracing(ctx, cfg.TracingConfig(), log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.WithoutCancel(ctx), shutdown, log)

	st, err := openStore(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer closeStore(ctx, st, log)

	var previous model.SweepRun
	if opts.resume != "" {
		previous, err = st.Run(ctx, opts.resume)
		if err != nil {
			return storeError(err)
		}
		if previous.Status == model.RunCompleted {
			return fmt.Errorf("run %s already completed", previous.ID)
		}
		window = previous.Window
	}

	objects, source, err := g.acquire(ctx, cfg, log)
	if err != nil {
		return err
	}
	catalog, err := kb.NewCatalog(objects, cfg.Sweep.ObjectCap)
	if err != nil {
		return err
	}
	log.Info(ctx, "catalog ready",
		logging.String("source", source),
		logging.Int("acquired", len(objects)),
		logging.Int("tracked", catalog.Len()),
	)

	var run model.SweepRun
	if opts.resume != "" {
		run, err = st.ReopenRun(ctx, opts.resume)
	} else {
		run, err = st.BeginRun(ctx, window, catalog.Len())
	}
	if err != nil {
		return storeError(err)
	}

	collector, err := observability.NewSweepCollector(nil)
	if err != nil {
		return err
	}
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(ctx, cfg.Metrics.Addr, collector.Handler(), log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	printer := newStatusPrinter(cmd.OutOrStdout(), opts.quiet, g.noColor)
	sched, err := sweep.NewScheduler(catalog, window, core.NewSGP4Propagator(), st,
		sweep.WithRunID(run.ID),
		sweep.WithWorkers(cfg.Sweep.Workers),
		sweep.WithLogger(log),
		sweep.WithCollector(collector),
		sweep.WithListener(printer.Step),
	)
	if err != nil {
		return err
	}

	var sum sweep.Summary
	if run.Committed() {
		sum, err = sched.Resume(ctx, run.LastInstant)
	} else {
		sum, err = sched.Run(ctx)
	}

	status := runStatus(err)
	if ferr := st.FinishRun(context.WithoutCancel(ctx), run.ID, status); ferr != nil {
		log.Error(ctx, "failed to record run status", logging.String("run_id", run.ID), logging.Err(ferr))
		if err == nil {
			err = storeError(ferr)
		}
	}
	printer.Summary(run, status, sum)
	return err
}

func runStatus(err error) model.RunStatus {
	switch {
	case err == nil:
		return model.RunCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.RunCancelled
	default:
		return model.RunFailed
	}
}

// changedOnly keeps the bindings whose flag the user set, so an unset flag
// never shadows the file or environment.
func changedOnly(cmd *cobra.Command, keys map[string]string) map[string]string {
	out := make(map[string]string, len(keys))
	for key, name := range keys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			out[key] = name
		}
	}
	return out
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(ctx, "metrics server exited", logging.Err(err))
		}
	}()
	log.Info(ctx, "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
