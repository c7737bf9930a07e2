package model

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestSweepWindowValidate(t *testing.T) {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		w     SweepWindow
		field string
	}{
		{"valid", SweepWindow{Start: start, End: start.Add(time.Hour), Step: time.Minute, ThresholdKm: 10}, ""},
		{"single instant", SweepWindow{Start: start, End: start, Step: time.Minute, ThresholdKm: 10}, ""},
		{"zero step", SweepWindow{Start: start, End: start.Add(time.Hour), ThresholdKm: 10}, "step"},
		{"negative step", SweepWindow{Start: start, End: start.Add(time.Hour), Step: -time.Second, ThresholdKm: 10}, "step"},
		{"zero threshold", SweepWindow{Start: start, End: start.Add(time.Hour), Step: time.Minute}, "threshold_km"},
		{"nan threshold", SweepWindow{Start: start, End: start.Add(time.Hour), Step: time.Minute, ThresholdKm: math.NaN()}, "threshold_km"},
		{"end before start", SweepWindow{Start: start, End: start.Add(-time.Second), Step: time.Minute, ThresholdKm: 10}, "duration"},
		{"missing start", SweepWindow{End: start, Step: time.Minute, ThresholdKm: 10}, "start"},
		{"sub-second step", SweepWindow{Start: start, End: start.Add(time.Second), Step: 500 * time.Millisecond, ThresholdKm: 10}, "step"},
		{"fractional step", SweepWindow{Start: start, End: start.Add(time.Minute), Step: 1500 * time.Millisecond, ThresholdKm: 10}, "step"},
		{"sub-second start", SweepWindow{Start: start.Add(250 * time.Millisecond), End: start.Add(time.Hour), Step: time.Minute, ThresholdKm: 10}, "start"},
		{"off-grid end", SweepWindow{Start: start, End: start.Add(90*time.Second + time.Millisecond), Step: time.Minute, ThresholdKm: 10}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.w.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *ConfigurationError", err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("ConfigurationError.Field = %q, want %q", cfgErr.Field, tc.field)
			}
		})
	}
}

func TestSweepWindowInstantCount(t *testing.T) {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		span time.Duration
		step time.Duration
		want int64
	}{
		{0, time.Minute, 1},
		{time.Minute, time.Minute, 2},
		{90 * time.Second, time.Minute, 2},
		{time.Hour, time.Minute, 61},
		{10 * 365 * 24 * time.Hour, time.Minute, 10*365*24*60 + 1},
		{59 * time.Second, time.Minute, 1},
	}
	for _, tc := range cases {
		w := SweepWindow{Start: start, End: start.Add(tc.span), Step: tc.step, ThresholdKm: 1}
		if got := w.InstantCount(); got != tc.want {
			t.Fatalf("InstantCount(span=%s, step=%s) = %d, want %d", tc.span, tc.step, got, tc.want)
		}
		last := w.InstantAt(tc.want - 1)
		if last.After(w.End) {
			t.Fatalf("last instant %s after end %s", last, w.End)
		}
		if next := w.InstantAt(tc.want); !next.After(w.End) {
			t.Fatalf("instant %d = %s should be past end %s", tc.want, next, w.End)
		}
	}
}

func TestNewConjunctionEventCanonicalOrder(t *testing.T) {
	at := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	ev := NewConjunctionEvent(at, "STARLINK-2", "ISS", 3.5)
	if ev.Sat1 != "ISS" || ev.Sat2 != "STARLINK-2" {
		t.Fatalf("pair = (%q, %q), want (ISS, STARLINK-2)", ev.Sat1, ev.Sat2)
	}
	if ev.Timestamp.Location() != time.UTC || !ev.Timestamp.Equal(at) {
		t.Fatalf("timestamp = %v, want %v in UTC", ev.Timestamp, at)
	}
	if ev.ID != 0 {
		t.Fatalf("new event has ID %d, want 0", ev.ID)
	}
}
