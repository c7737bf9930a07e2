package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

func TestVec3Distance(t *testing.T) {
	a := Vec3{X: 0, Y: 0, Z: 0}
	b := Vec3{X: 3, Y: 4, Z: 12}
	if got := a.DistanceTo(b); math.Abs(got-13) > 1e-12 {
		t.Fatalf("DistanceTo = %v, want 13", got)
	}
	if got := b.DistanceSquared(a); got != 169 {
		t.Fatalf("DistanceSquared = %v, want 169", got)
	}
	if got := b.Sub(a).Norm(); math.Abs(got-13) > 1e-12 {
		t.Fatalf("Norm = %v, want 13", got)
	}
}

func TestVec3Finite(t *testing.T) {
	if !(Vec3{X: 1, Y: 2, Z: 3}).Finite() {
		t.Fatal("finite vector reported as non-finite")
	}
	if (Vec3{X: math.NaN()}).Finite() {
		t.Fatal("NaN component reported as finite")
	}
	if (Vec3{Z: math.Inf(-1)}).Finite() {
		t.Fatal("Inf component reported as finite")
	}
}

func TestPairDistance(t *testing.T) {
	a := model.StateVector{Position: model.Vector{0, 0, 0}}
	b := model.StateVector{Position: model.Vector{5, 0, 0}}
	if got := PairDistance(a, b); got != 5 {
		t.Fatalf("PairDistance = %v, want 5", got)
	}
}
