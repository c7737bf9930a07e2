package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// SGP4Propagator propagates two-line element sets with go-satellite using the
// WGS72 gravity model. Parsed element sets are memoised per designator; the
// memo never changes a result, so the propagator stays a pure function of
// (object, instant).
//
// go-satellite resolves time to whole seconds, so sub-second parts of the
// requested instant are ignored.
type SGP4Propagator struct {
	mu    sync.RWMutex
	cache map[string]sgp4Entry
}

type sgp4Entry struct {
	line1, line2 string
	sat          satellite.Satellite
	err          *PropagationError // initialisation failure, reused for every instant
}

// NewSGP4Propagator returns an empty propagator.
func NewSGP4Propagator() *SGP4Propagator {
	return &SGP4Propagator{cache: make(map[string]sgp4Entry)}
}

// Propagate returns obj's TEME position (km) and velocity (km/s) at instant at.
func (p *SGP4Propagator) Propagate(obj model.TrackedObject, at time.Time) (model.StateVector, error) {
	at = at.UTC()
	entry := p.entry(obj)
	if entry.err != nil {
		failure := *entry.err
		failure.Instant = at
		return model.StateVector{}, &failure
	}

	year, month, day := at.Date()
	hour, min, sec := at.Clock()
	posECI, velECI := satellite.Propagate(entry.sat, year, int(month), day, hour, min, sec)

	pos := Vec3{X: posECI.X, Y: posECI.Y, Z: posECI.Z}
	vel := Vec3{X: velECI.X, Y: velECI.Y, Z: velECI.Z}
	if !pos.Finite() || !vel.Finite() {
		return model.StateVector{}, &PropagationError{
			Designator: obj.Designator,
			Instant:    at,
			Code:       CodeNonFinite,
			Err:        errors.New("sgp4 output is NaN or Inf"),
		}
	}
	if r := pos.Norm(); r < EarthRadiusKm {
		return model.StateVector{}, &PropagationError{
			Designator: obj.Designator,
			Instant:    at,
			Code:       CodeDecayed,
			Err:        fmt.Errorf("position radius %.1f km is below the Earth's surface", r),
		}
	}

	return model.StateVector{
		Position: pos.Vector(),
		Velocity: vel.Vector(),
		Instant:  at,
	}, nil
}

func (p *SGP4Propagator) entry(obj model.TrackedObject) sgp4Entry {
	p.mu.RLock()
	e, ok := p.cache[obj.Designator]
	p.mu.RUnlock()
	if ok && e.line1 == obj.Line1 && e.line2 == obj.Line2 {
		return e
	}

	e = sgp4Entry{line1: obj.Line1, line2: obj.Line2}
	if err := ValidateElements(obj.Line1, obj.Line2); err != nil {
		e.err = &PropagationError{Designator: obj.Designator, Code: CodeInvalidElements, Err: err}
	} else {
		sat := satellite.TLEToSat(strings.TrimSpace(obj.Line1), strings.TrimSpace(obj.Line2), satellite.GravityWGS72)
		if sat.Error != 0 {
			e.err = &PropagationError{
				Designator: obj.Designator,
				Code:       int(sat.Error),
				Err:        fmt.Errorf("sgp4 init: %s", sat.ErrorStr),
			}
		}
		e.sat = sat
	}

	p.mu.Lock()
	p.cache[obj.Designator] = e
	p.mu.Unlock()
	return e
}

// ValidateElements performs the format checks go-satellite relies on. The
// library aborts the process on malformed numeric fields, so every field it
// parses is parsed here first.
func ValidateElements(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if !strings.HasPrefix(line1, "1 ") {
		return fmt.Errorf("line1 must start with \"1 \", got %q", line1[:2])
	}
	if !strings.HasPrefix(line2, "2 ") {
		return fmt.Errorf("line2 must start with \"2 \", got %q", line2[:2])
	}
	if n1, n2 := strings.TrimSpace(line1[2:7]), strings.TrimSpace(line2[2:7]); n1 != n2 {
		return fmt.Errorf("catalog number mismatch: line1 %q, line2 %q", n1, n2)
	}
	for _, f := range elementFields(line1, line2) {
		var err error
		if f.integer {
			_, err = strconv.ParseInt(f.text, 10, 0)
		} else {
			_, err = strconv.ParseFloat(f.text, 64)
		}
		if err != nil {
			return fmt.Errorf("%s field %q is not a number", f.name, f.text)
		}
	}
	return nil
}

type elementField struct {
	name    string
	text    string
	integer bool
}

// elementFields slices the numeric fields exactly as go-satellite's parser
// does, so a field that passes here cannot make the library exit.
func elementFields(line1, line2 string) []elementField {
	squeeze := func(s string) string { return strings.Replace(s, " ", "", 2) }
	return []elementField{
		{name: "catalog number", text: strings.TrimSpace(line1[2:7]), integer: true},
		{name: "epoch year", text: line1[18:20], integer: true},
		{name: "epoch day", text: line1[20:32]},
		{name: "mean motion derivative", text: squeeze(line1[33:43])},
		{name: "mean motion second derivative", text: squeeze(line1[44:45] + "." + line1[45:50] + "e" + line1[50:52])},
		{name: "bstar", text: squeeze(line1[53:54] + "." + line1[54:59] + "e" + line1[59:61])},
		{name: "inclination", text: squeeze(line2[8:16])},
		{name: "right ascension", text: squeeze(line2[17:25])},
		{name: "eccentricity", text: "." + line2[26:33]},
		{name: "argument of perigee", text: squeeze(line2[34:42])},
		{name: "mean anomaly", text: squeeze(line2[43:51])},
		{name: "mean motion", text: squeeze(line2[52:63])},
	}
}
