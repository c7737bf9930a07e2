package model

import "time"

// ConjunctionEvent records two tracked objects whose propagated positions
// were within the sweep threshold at Timestamp. Sat1 < Sat2 always holds for
// events built with NewConjunctionEvent. ID is assigned by the event store;
// zero means the event has not been written yet.
type ConjunctionEvent struct {
	ID         int64
	Timestamp  time.Time
	Sat1       string
	Sat2       string
	DistanceKm float64
}

// NewConjunctionEvent orders the designators lexicographically so an
// unordered pair always maps to the same (Sat1, Sat2).
func NewConjunctionEvent(at time.Time, a, b string, distanceKm float64) ConjunctionEvent {
	if b < a {
		a, b = b, a
	}
	return ConjunctionEvent{
		Timestamp:  at.UTC(),
		Sat1:       a,
		Sat2:       b,
		DistanceKm: distanceKm,
	}
}

// StepCommit is the durable unit of one sweep instant: every event found at
// Instant plus the run progress marker. Either all of it is committed or none.
type StepCommit struct {
	RunID   string
	Instant time.Time
	Events  []ConjunctionEvent
}
