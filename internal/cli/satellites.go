package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/conjunction-sweep/internal/logging"
	"github.com/signalsfoundry/conjunction-sweep/kb"
)

func newSatellitesCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "satellites",
		Short: "Acquire the catalog and list its designators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := g.load(cmd, changedOnly(cmd, map[string]string{
				"provider.sources":   "sources",
				"provider.file.path": "file",
			}))
			if err != nil {
				return err
			}
			objects, source, err := g.acquire(ctx, cfg, log)
			if err != nil {
				return err
			}
			catalog, err := kb.NewCatalog(objects, limit)
			if err != nil {
				return err
			}
			log.Info(ctx, "catalog acquired", logging.String("source", source), logging.Int("objects", len(objects)))
			for _, name := range catalog.Designators() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&limit, "limit", "n", 0, "list only the first N objects, 0 for all")
	f.StringSlice("sources", nil, "ordered provider sources: celestrak, tleapi, spacetrack, file")
	f.String("file", "", "element file for the file source")
	return cmd
}
