package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/conjunction-sweep/kb"
	"github.com/signalsfoundry/conjunction-sweep/timectrl"
)

// CatalogFunc yields the tracked objects a request works from.
type CatalogFunc func(ctx context.Context) (*kb.Catalog, error)

// Static serves a fixed catalog.
func Static(c *kb.Catalog) CatalogFunc {
	return func(context.Context) (*kb.Catalog, error) { return c, nil }
}

// Cached wraps load so that a successful result is reused for ttl. A failed
// refresh falls back to the previous catalog when one exists.
func Cached(load CatalogFunc, ttl time.Duration, clock timectrl.Clock) CatalogFunc {
	if clock == nil {
		clock = timectrl.WallClock{}
	}
	var (
		mu      sync.Mutex
		cached  *kb.Catalog
		fetched time.Time
	)
	return func(ctx context.Context) (*kb.Catalog, error) {
		mu.Lock()
		defer mu.Unlock()

		now := clock.Now()
		if cached != nil && now.Sub(fetched) < ttl {
			return cached, nil
		}
		c, err := load(ctx)
		if err != nil {
			if cached != nil {
				return cached, nil
			}
			return nil, err
		}
		cached, fetched = c, now
		return c, nil
	}
}
