package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/conjunction-sweep/core"
	"github.com/signalsfoundry/conjunction-sweep/internal/logging"
	"github.com/signalsfoundry/conjunction-sweep/internal/observability"
	"github.com/signalsfoundry/conjunction-sweep/internal/snapshot"
	"github.com/signalsfoundry/conjunction-sweep/kb"
	"github.com/signalsfoundry/conjunction-sweep/timectrl"
)

var serveFlagKeys = map[string]string{
	"server.addr":                 "addr",
	"server.object_limit":         "object-limit",
	"server.default_threshold_km": "threshold-km",
	"server.catalog_ttl":          "catalog-ttl",
	"provider.sources":            "sources",
	"provider.file.path":          "file",
}

func newServeCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve catalog, position and conjunction snapshots over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, g)
		},
	}
	f := cmd.Flags()
	f.String("addr", "", "listen address (default :8000)")
	f.Int("object-limit", 0, "objects considered by positions and conjunctions (default 200)")
	f.Float64("threshold-km", 0, "default conjunction threshold in km (default 10)")
	f.Duration("catalog-ttl", 0, "how long an acquired catalog is reused (default 10m)")
	f.StringSlice("sources", nil, "ordered provider sources: celestrak, tleapi, spacetrack, file")
	f.String("file", "", "element file for the file source")
	return cmd
}

func runServe(cmd *cobra.Command, g *globals) error {
	ctx := cmd.Context()
	cfg, log, err := g.load(cmd, changedOnly(cmd, serveFlagKeys))
	if err != nil {
		return err
	}

	collector, err := observability.NewQueryCollector(nil)
	if err != nil {
		return err
	}

	load := func(ctx context.Context) (*kb.Catalog, error) {
		objects, source, err := g.acquire(ctx, cfg, log)
		if err != nil {
			log.Warn(ctx, "catalog refresh failed", logging.Err(err))
			return nil, err
		}
		catalog, err := kb.NewCatalog(objects, 0)
		if err != nil {
			return nil, err
		}
		collector.SetTrackedObjects(catalog.Len())
		log.Info(ctx, "catalog refreshed", logging.String("source", source), logging.Int("objects", catalog.Len()))
		return catalog, nil
	}

	srv := snapshot.NewServer(
		snapshot.Cached(load, cfg.Server.CatalogTTL, timectrl.WallClock{}),
		core.NewSGP4Propagator(),
		snapshot.WithLogger(log),
		snapshot.WithCollector(collector),
		snapshot.WithConfig(cfg.SnapshotConfig()),
	)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
