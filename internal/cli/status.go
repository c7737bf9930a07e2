package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/signalsfoundry/conjunction-sweep/model"
	"github.com/signalsfoundry/conjunction-sweep/sweep"
)

// statusPrinter writes the per-instant console status of a sweep.
type statusPrinter struct {
	out   io.Writer
	quiet bool

	alert *color.Color
	clear *color.Color
	bold  *color.Color
}

func newStatusPrinter(out io.Writer, quiet, noColor bool) *statusPrinter {
	p := &statusPrinter{
		out:   out,
		quiet: quiet,
		alert: color.New(color.FgRed, color.Bold),
		clear: color.New(color.FgGreen),
		bold:  color.New(color.Bold),
	}
	if noColor {
		p.alert.DisableColor()
		p.clear.DisableColor()
		p.bold.DisableColor()
	}
	return p
}

// Step is a sweep.Listener.
func (p *statusPrinter) Step(r sweep.StepReport) {
	if p.quiet {
		return
	}
	ts := r.Instant.UTC().Format(time.RFC3339)
	if len(r.Events) == 0 {
		p.clear.Fprintf(p.out, "%s  No collisions detected\n", ts)
		return
	}
	for _, ev := range r.Events {
		p.alert.Fprintf(p.out, "%s  Collision detected: %s <-> %s at %.3f km\n", ts, ev.Sat1, ev.Sat2, ev.DistanceKm)
	}
}

func (p *statusPrinter) Summary(run model.SweepRun, status model.RunStatus, s sweep.Summary) {
	p.bold.Fprintf(p.out, "run %s %s\n", run.ID, status)
	fmt.Fprintf(p.out, "  instants:             %s\n", humanize.Comma(s.Instants))
	fmt.Fprintf(p.out, "  conjunction events:   %s\n", humanize.Comma(s.Events))
	fmt.Fprintf(p.out, "  propagation failures: %s\n", humanize.Comma(s.Failures))
	if !s.LastInstant.IsZero() {
		fmt.Fprintf(p.out, "  last instant:         %s\n", s.LastInstant.UTC().Format(time.RFC3339))
	}
}
