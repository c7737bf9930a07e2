package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/signalsfoundry/conjunction-sweep/internal/logging"
	"github.com/signalsfoundry/conjunction-sweep/model"
)

// Normalize trims designators and makes them unique. A blank designator is
// replaced by the catalog number. A repeated designator is disambiguated as
// "NAME [norad]"; an entry that still collides is dropped with a warning.
// Order is preserved and the input slice is left untouched.
func Normalize(ctx context.Context, objects []model.TrackedObject, log logging.Logger) []model.TrackedObject {
	if log == nil {
		log = logging.Noop()
	}
	objects = append([]model.TrackedObject(nil), objects...)

	counts := make(map[string]int, len(objects))
	for i := range objects {
		objects[i].Designator = strings.TrimSpace(objects[i].Designator)
		if objects[i].Designator == "" && objects[i].NoradID > 0 {
			objects[i].Designator = strconv.Itoa(objects[i].NoradID)
		}
		counts[objects[i].Designator]++
	}

	seen := make(map[string]bool, len(objects))
	out := make([]model.TrackedObject, 0, len(objects))
	for _, obj := range objects {
		name := obj.Designator
		if name == "" {
			log.Warn(ctx, "dropping element set without designator or catalog number")
			continue
		}
		if counts[name] > 1 && obj.NoradID > 0 {
			name = fmt.Sprintf("%s [%d]", name, obj.NoradID)
		}
		if seen[name] {
			log.Warn(ctx, "dropping duplicate element set", logging.String("designator", name))
			continue
		}
		seen[name] = true
		obj.Designator = name
		out = append(out, obj)
	}
	return out
}
