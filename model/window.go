package model

import (
	"fmt"
	"math"
	"time"
)

// SweepWindow configures one sweep: instants start, start+step, ... up to and
// including End when it falls on the grid. Start and Step are whole seconds,
// the resolution of the propagator and the event store.
type SweepWindow struct {
	Start       time.Time
	End         time.Time
	Step        time.Duration
	ThresholdKm float64
}

// ConfigurationError reports an invalid sweep or service setting. It is
// always detected before any propagation work begins.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Validate checks the window preconditions.
func (w SweepWindow) Validate() error {
	if w.Step <= 0 {
		return &ConfigurationError{Field: "step", Reason: fmt.Sprintf("must be positive, got %s", w.Step)}
	}
	if w.Step%time.Second != 0 {
		return &ConfigurationError{Field: "step", Reason: fmt.Sprintf("must be a whole number of seconds, got %s", w.Step)}
	}
	if math.IsNaN(w.ThresholdKm) || math.IsInf(w.ThresholdKm, 0) || w.ThresholdKm <= 0 {
		return &ConfigurationError{Field: "threshold_km", Reason: fmt.Sprintf("must be a positive finite number, got %v", w.ThresholdKm)}
	}
	if w.Start.IsZero() {
		return &ConfigurationError{Field: "start", Reason: "must be set"}
	}
	if w.Start.Nanosecond() != 0 {
		return &ConfigurationError{Field: "start", Reason: fmt.Sprintf("must fall on a whole second, got %s", w.Start.Format(time.RFC3339Nano))}
	}
	if w.End.Before(w.Start) {
		return &ConfigurationError{
			Field:  "duration",
			Reason: fmt.Sprintf("window end %s precedes start %s", w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339)),
		}
	}
	return nil
}

// InstantCount returns floor((End-Start)/Step)+1 for a valid window.
func (w SweepWindow) InstantCount() int64 {
	if w.Step <= 0 || w.End.Before(w.Start) {
		return 0
	}
	return int64(w.End.Sub(w.Start)/w.Step) + 1
}

// InstantAt returns the k-th instant of the window. Instants are computed by
// multiplication from Start, never by repeated addition.
func (w SweepWindow) InstantAt(k int64) time.Time {
	return w.Start.Add(time.Duration(k) * w.Step)
}
