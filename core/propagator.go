package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// ErrPropagation is matched by every *PropagationError.
var ErrPropagation = errors.New("propagation failed")

// Propagation failure codes. Positive values follow the SGP4 model's own
// error numbering; negative values are detected around the model.
const (
	CodeInvalidElements = -1 // element lines rejected before model initialisation
	CodeNonFinite       = -2 // model produced NaN or Inf
	CodeUnclassified    = -3 // propagator returned a plain error or panicked
	CodeEccentricity    = 1  // mean eccentricity out of range or semi-major axis too small
	CodeMeanMotion      = 2  // negative mean motion
	CodePerturbedEcc    = 3  // perturbed eccentricity out of range
	CodeSemiLatusRectum = 4  // negative semi-latus rectum
	CodeSubOrbital      = 5  // epoch elements are sub-orbital
	CodeDecayed         = 6  // orbit has decayed below the Earth's surface
)

// PropagationError is the failure of one object at one instant. The sweep
// treats it as local to that (object, instant) pair.
type PropagationError struct {
	Designator string
	Instant    time.Time
	Code       int
	Err        error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagate %s at %s: code %d: %v",
		e.Designator, e.Instant.UTC().Format(time.RFC3339), e.Code, e.Err)
}

func (e *PropagationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPropagation) match any PropagationError.
func (e *PropagationError) Is(target error) bool { return target == ErrPropagation }

// Propagator maps an object and an explicit instant to an inertial state
// vector. Implementations must be deterministic and safe for concurrent use;
// failures are returned as *PropagationError.
type Propagator interface {
	Propagate(obj model.TrackedObject, at time.Time) (model.StateVector, error)
}

// PropagatorFunc adapts a function to the Propagator interface.
type PropagatorFunc func(obj model.TrackedObject, at time.Time) (model.StateVector, error)

// Propagate calls f.
func (f PropagatorFunc) Propagate(obj model.TrackedObject, at time.Time) (model.StateVector, error) {
	return f(obj, at)
}
