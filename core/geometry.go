package core

import (
	"math"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// EarthRadiusKm is the equatorial Earth radius used to sanity-check propagated
// positions (kilometres).
const EarthRadiusKm = 6378.135

// Vec3 is an inertial position or velocity in kilometres (km/s).
type Vec3 struct {
	X, Y, Z float64
}

// VecOf converts a model vector.
func VecOf(v model.Vector) Vec3 {
	return Vec3{X: v[0], Y: v[1], Z: v[2]}
}

// Vector converts back to the model representation.
func (v Vec3) Vector() model.Vector {
	return model.Vector{v.X, v.Y, v.Z}
}

// DistanceSquared returns the squared straight-line distance. The detector and
// its exhaustive reference both use this exact expression so that inclusion
// decisions agree bit for bit.
func (v Vec3) DistanceSquared(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return math.Sqrt(v.DistanceSquared(other))
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Finite reports whether every component is a finite number.
func (v Vec3) Finite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// PairDistance returns the exact distance between two state vectors'
// positions in kilometres.
func PairDistance(a, b model.StateVector) float64 {
	return VecOf(a.Position).DistanceTo(VecOf(b.Position))
}
