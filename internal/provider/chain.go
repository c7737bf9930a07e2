package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/conjunction-sweep/internal/logging"
	"github.com/signalsfoundry/conjunction-sweep/model"
)

// Chain tries sources in order and returns the first non-empty result.
type Chain struct {
	sources []Source
	log     logging.Logger
}

// NewChain builds a chain over sources in priority order.
func NewChain(log logging.Logger, sources ...Source) *Chain {
	if log == nil {
		log = logging.Noop()
	}
	return &Chain{sources: sources, log: log}
}

// Sources returns the names of the configured sources in order.
func (c *Chain) Sources() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return names
}

// Acquire returns the normalized objects of the first source that succeeds
// along with that source's name. When every source fails it returns an
// *AcquisitionError carrying each failure. Cancellation stops the chain
// immediately and is returned as is.
func (c *Chain) Acquire(ctx context.Context) ([]model.TrackedObject, string, error) {
	var failures []SourceFailure
	for _, src := range c.sources {
		objects, err := src.Fetch(ctx)
		if err == nil && len(objects) > 0 {
			objects = Normalize(ctx, objects, c.log)
		}
		if err == nil && len(objects) == 0 {
			err = ErrNoObjects
		}
		if err == nil {
			c.log.Info(ctx, "orbital elements acquired",
				logging.String("source", src.Name()),
				logging.Int("objects", len(objects)),
			)
			return objects, src.Name(), nil
		}
		if shouldSkipFallback(ctx, err) {
			return nil, "", fmt.Errorf("%s: %w", src.Name(), err)
		}
		c.log.Warn(ctx, "orbital data source failed",
			logging.String("source", src.Name()),
			logging.Err(err),
		)
		failures = append(failures, SourceFailure{Source: src.Name(), Err: err})
	}
	return nil, "", &AcquisitionError{Failures: failures}
}

func shouldSkipFallback(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}
