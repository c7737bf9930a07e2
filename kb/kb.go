// Package kb holds the tracked-object catalog: the fixed snapshot of orbital
// element sets a sweep or a snapshot query works from.
package kb

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// Catalog is an immutable, ordered set of tracked objects with unique
// designators. It is safe for concurrent reads because nothing mutates it
// after construction.
type Catalog struct {
	objects []model.TrackedObject
	index   map[string]int
}

// NewCatalog snapshots objects. Designators are trimmed; an empty or repeated
// designator is an error. When limit > 0 only the first limit objects are kept.
func NewCatalog(objects []model.TrackedObject, limit int) (*Catalog, error) {
	if limit < 0 {
		return nil, fmt.Errorf("object limit must not be negative, got %d", limit)
	}
	if limit > 0 && len(objects) > limit {
		objects = objects[:limit]
	}

	c := &Catalog{
		objects: make([]model.TrackedObject, 0, len(objects)),
		index:   make(map[string]int, len(objects)),
	}
	for i, obj := range objects {
		obj.Designator = strings.TrimSpace(obj.Designator)
		if obj.Designator == "" {
			return nil, fmt.Errorf("object %d has an empty designator", i)
		}
		if prev, exists := c.index[obj.Designator]; exists {
			return nil, fmt.Errorf("designator %q appears at positions %d and %d", obj.Designator, prev, i)
		}
		c.index[obj.Designator] = len(c.objects)
		c.objects = append(c.objects, obj)
	}
	return c, nil
}

// Len returns the number of tracked objects.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.objects)
}

// Object returns the i-th object in catalog order.
func (c *Catalog) Object(i int) model.TrackedObject {
	return c.objects[i]
}

// Objects returns a copy of the objects in catalog order.
func (c *Catalog) Objects() []model.TrackedObject {
	if c == nil {
		return nil
	}
	out := make([]model.TrackedObject, len(c.objects))
	copy(out, c.objects)
	return out
}

// Designators returns the designators in catalog order.
func (c *Catalog) Designators() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.objects))
	for i, obj := range c.objects {
		out[i] = obj.Designator
	}
	return out
}

// Lookup returns the object with the given designator.
func (c *Catalog) Lookup(designator string) (model.TrackedObject, bool) {
	if c == nil {
		return model.TrackedObject{}, false
	}
	i, ok := c.index[designator]
	if !ok {
		return model.TrackedObject{}, false
	}
	return c.objects[i], true
}

// Head returns a catalog of the first n objects (all of them when n <= 0 or
// n >= Len).
func (c *Catalog) Head(n int) *Catalog {
	if c == nil || n <= 0 || n >= len(c.objects) {
		return c
	}
	head := &Catalog{
		objects: c.objects[:n:n],
		index:   make(map[string]int, n),
	}
	for i, obj := range head.objects {
		head.index[obj.Designator] = i
	}
	return head
}
