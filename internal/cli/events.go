package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/conjunction-sweep/internal/store"
	"github.com/signalsfoundry/conjunction-sweep/model"
)

type eventsOptions struct {
	runID     string
	satellite string
	from      string
	to        string
	limit     int
	output    string
}

// eventJSON is the wire form of a stored event.
type eventJSON struct {
	ID         int64   `json:"id"`
	Timestamp  string  `json:"timestamp"`
	Sat1       string  `json:"sat1"`
	Sat2       string  `json:"sat2"`
	DistanceKm float64 `json:"distance_km"`
}

func newEventsCmd(g *globals) *cobra.Command {
	var opts eventsOptions
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded conjunction events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvents(cmd, g, opts)
		},
	}
	f := cmd.Flags()
	f.String("db", "", "event store path (default collisions.db)")
	f.StringVar(&opts.runID, "run", "", "only events of this run")
	f.StringVar(&opts.satellite, "satellite", "", "only events involving this designator")
	f.StringVar(&opts.from, "from", "", "earliest timestamp, RFC 3339")
	f.StringVar(&opts.to, "to", "", "latest timestamp, RFC 3339, inclusive")
	f.IntVarP(&opts.limit, "limit", "n", 0, "maximum number of events, 0 for all")
	f.StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	return cmd
}

func (o eventsOptions) filter() (store.EventFilter, error) {
	f := store.EventFilter{RunID: o.runID, Satellite: strings.TrimSpace(o.satellite), Limit: o.limit}
	var err error
	if o.limit < 0 {
		return f, &model.ConfigurationError{Field: "limit", Reason: "must not be negative"}
	}
	if o.from != "" {
		if f.From, err = time.Parse(time.RFC3339, o.from); err != nil {
			return f, &model.ConfigurationError{Field: "from", Reason: err.Error()}
		}
	}
	if o.to != "" {
		if f.To, err = time.Parse(time.RFC3339, o.to); err != nil {
			return f, &model.ConfigurationError{Field: "to", Reason: err.Error()}
		}
	}
	switch o.output {
	case "table", "json":
	default:
		return f, &model.ConfigurationError{Field: "output", Reason: "must be table or json"}
	}
	return f, nil
}

func runEvents(cmd *cobra.Command, g *globals, opts eventsOptions) error {
	ctx := cmd.Context()
	filter, err := opts.filter()
	if err != nil {
		return err
	}
	cfg, log, err := g.load(cmd, changedOnly(cmd, map[string]string{"store.path": "db"}))
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer closeStore(ctx, st, log)

	events, err := st.Events(ctx, filter)
	if err != nil {
		return storeError(err)
	}
	if opts.output == "json" {
		return writeEventsJSON(cmd.OutOrStdout(), events)
	}
	return writeEventsTable(cmd.OutOrStdout(), events)
}

func writeEventsJSON(w io.Writer, events []model.ConjunctionEvent) error {
	out := make([]eventJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, eventJSON{
			ID:         ev.ID,
			Timestamp:  ev.Timestamp.UTC().Format(time.RFC3339),
			Sat1:       ev.Sat1,
			Sat2:       ev.Sat2,
			DistanceKm: ev.DistanceKm,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeEventsTable(w io.Writer, events []model.ConjunctionEvent) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "No conjunction events recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIMESTAMP\tSAT1\tSAT2\tDISTANCE_KM")
	for _, ev := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.3f\n",
			ev.ID, ev.Timestamp.UTC().Format(time.RFC3339), ev.Sat1, ev.Sat2, ev.DistanceKm)
	}
	return tw.Flush()
}
