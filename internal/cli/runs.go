package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newRunsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded sweep runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := g.load(cmd, changedOnly(cmd, map[string]string{"store.path": "db"}))
			if err != nil {
				return err
			}
			st, err := openStore(ctx, cfg.Store.Path)
			if err != nil {
				return err
			}
			defer closeStore(ctx, st, log)

			runs, err := st.Runs(ctx)
			if err != nil {
				return storeError(err)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				_, err := fmt.Fprintln(out, "No sweep runs recorded")
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tSTART\tEND\tSTEP\tTHRESHOLD_KM\tOBJECTS\tLAST_INSTANT")
			for _, r := range runs {
				last := "-"
				if r.Committed() {
					last = r.LastInstant.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%g\t%s\t%s\n",
					r.ID, r.Status,
					r.Window.Start.UTC().Format(time.RFC3339),
					r.Window.End.UTC().Format(time.RFC3339),
					r.Window.Step, r.Window.ThresholdKm,
					humanize.Comma(int64(r.ObjectCount)), last)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("db", "", "event store path (default collisions.db)")
	return cmd
}
