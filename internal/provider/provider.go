// Package provider acquires the orbital element sets a sweep starts from.
// Each Source is one strategy (a network feed or a local file); a Chain tries
// them in order until one yields objects.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// ErrNoObjects marks a source that answered successfully but supplied no
// usable element sets.
var ErrNoObjects = errors.New("source returned no objects")

// Source fetches the current element sets from one origin.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.TrackedObject, error)
}

// SourceFailure is one source's contribution to an AcquisitionError.
type SourceFailure struct {
	Source string
	Err    error
}

// AcquisitionError reports that every configured source failed.
type AcquisitionError struct {
	Failures []SourceFailure
}

func (e *AcquisitionError) Error() string {
	if len(e.Failures) == 0 {
		return "acquire orbital elements: no sources configured"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Source, f.Err))
	}
	return "acquire orbital elements: all sources failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes every source error to errors.Is and errors.As.
func (e *AcquisitionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
