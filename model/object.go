package model

import "time"

// TrackedObject is one orbiting object of a sweep. Designator is unique within
// a catalog; Line1 and Line2 are the raw two-line element set and are treated
// as opaque by everything except the propagator.
type TrackedObject struct {
	Designator string
	NoradID    int // 0 when the source did not carry a catalog number
	Line1      string
	Line2      string
}

// Vector is a Cartesian 3-vector in kilometres (or km/s for velocities).
type Vector [3]float64

// StateVector is an object's inertial (TEME) state at one instant. It is
// recomputed on demand and never persisted.
type StateVector struct {
	Position Vector // km
	Velocity Vector // km/s
	Instant  time.Time
}
