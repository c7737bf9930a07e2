package core

import (
	"math/rand"
	"reflect"
	"testing"
)

func randomPositions(rng *rand.Rand, n int, spanKm float64) []Vec3 {
	out := make([]Vec3, n)
	for i := range out {
		out[i] = Vec3{
			X: (rng.Float64() - 0.5) * spanKm,
			Y: (rng.Float64() - 0.5) * spanKm,
			Z: (rng.Float64() - 0.5) * spanKm,
		}
	}
	return out
}

func TestKDTreeDetectorMatchesExhaustive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sizes := []int{0, 1, 2, 3, 10, 57, 200, 500}
	thresholds := []float64{0, 1, 10, 50, 250}

	for _, n := range sizes {
		positions := randomPositions(rng, n, 1000)
		for _, th := range thresholds {
			got := KDTreeDetector{}.Detect(positions, th)
			want := ExhaustiveDetector{}.Detect(positions, th)
			if len(got) == 0 && len(want) == 0 {
				continue
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("n=%d threshold=%v: kd-tree found %d pairs, exhaustive %d", n, th, len(got), len(want))
			}
		}
	}
}

func TestKDTreeDetectorClusteredInput(t *testing.T) {
	// Tight clusters stress the median partitioning with many near-ties.
	rng := rand.New(rand.NewSource(7))
	var positions []Vec3
	for c := 0; c < 20; c++ {
		centre := Vec3{X: float64(c) * 100, Y: 7000, Z: -3000}
		for k := 0; k < 15; k++ {
			positions = append(positions, Vec3{
				X: centre.X + rng.Float64()*5,
				Y: centre.Y + rng.Float64()*5,
				Z: centre.Z,
			})
		}
	}
	got := KDTreeDetector{}.Detect(positions, 4)
	want := ExhaustiveDetector{}.Detect(positions, 4)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("kd-tree found %d pairs, exhaustive %d", len(got), len(want))
	}
}

func TestDetectPairInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	positions := randomPositions(rng, 300, 500)
	const threshold = 40.0

	seen := make(map[Pair]bool)
	for _, p := range (KDTreeDetector{}).Detect(positions, threshold) {
		if p.I == p.J {
			t.Fatalf("self pair %+v", p)
		}
		if p.I > p.J {
			t.Fatalf("pair %+v not ordered", p)
		}
		if seen[p] {
			t.Fatalf("pair %+v reported twice", p)
		}
		seen[p] = true
		if d := positions[p.I].DistanceTo(positions[p.J]); d > threshold {
			t.Fatalf("pair %+v distance %v exceeds threshold", p, d)
		}
	}
}

func TestDetectMonotonicInThreshold(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	positions := randomPositions(rng, 250, 800)

	prev := map[Pair]bool{}
	for _, th := range []float64{5, 20, 60, 120} {
		cur := map[Pair]bool{}
		for _, p := range (KDTreeDetector{}).Detect(positions, th) {
			cur[p] = true
		}
		for p := range prev {
			if !cur[p] {
				t.Fatalf("pair %+v found at a smaller threshold but not at %v", p, th)
			}
		}
		prev = cur
	}
}

func TestDetectScenarioThreeObjects(t *testing.T) {
	positions := []Vec3{{X: 0}, {X: 5}, {X: 1000}}
	for _, d := range []Detector{KDTreeDetector{}, ExhaustiveDetector{}} {
		got := d.Detect(positions, 10)
		want := []Pair{{I: 0, J: 1}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%T.Detect = %v, want %v", d, got, want)
		}
		if dist := positions[0].DistanceTo(positions[1]); dist != 5 {
			t.Fatalf("distance = %v, want 5", dist)
		}
	}
}

func TestDetectDegenerateInputs(t *testing.T) {
	d := KDTreeDetector{}
	if got := d.Detect(nil, 10); len(got) != 0 {
		t.Fatalf("Detect(nil) = %v, want empty", got)
	}
	if got := d.Detect([]Vec3{{X: 1}}, 10); len(got) != 0 {
		t.Fatalf("Detect(single) = %v, want empty", got)
	}

	// Coincident positions are a valid conjunction at distance zero.
	dup := []Vec3{{X: 7000, Y: 1, Z: 2}, {X: 7000, Y: 1, Z: 2}, {X: 7000, Y: 1, Z: 2}}
	got := d.Detect(dup, 0.001)
	want := []Pair{{0, 1}, {0, 2}, {1, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Detect(duplicates) = %v, want %v", got, want)
	}
}

func TestDetectBoundaryInclusive(t *testing.T) {
	positions := []Vec3{{X: 0}, {X: 10}}
	got := KDTreeDetector{}.Detect(positions, 10)
	if len(got) != 1 {
		t.Fatalf("pair at exactly the threshold not reported: %v", got)
	}
}

func BenchmarkKDTreeDetector2000(b *testing.B) {
	positions := randomPositions(rand.New(rand.NewSource(1)), 2000, 80000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		KDTreeDetector{}.Detect(positions, 10)
	}
}
