package core

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Pair is an unordered pair of position indices, stored with I < J.
type Pair struct {
	I, J int
}

// Detector finds every pair of positions whose distance is within a
// threshold. Implementations hold no state between calls and return pairs
// sorted by (I, J).
type Detector interface {
	Detect(positions []Vec3, thresholdKm float64) []Pair
}

// KDTreeDetector answers proximity queries with a k-d tree built fresh from
// each call's positions. Its result is identical to ExhaustiveDetector's for
// any finite input.
type KDTreeDetector struct{}

// Detect returns all pairs (i, j), i < j, with |positions[i]-positions[j]| <= thresholdKm.
func (KDTreeDetector) Detect(positions []Vec3, thresholdKm float64) []Pair {
	if len(positions) < 2 || !(thresholdKm >= 0) {
		return nil
	}

	points := make(indexedPoints, len(positions))
	for i, p := range positions {
		points[i] = indexedPoint{pos: p, index: i}
	}
	tree := kdtree.New(points, false)

	// kdtree distances are squared Euclidean distances.
	r2 := thresholdKm * thresholdKm
	var pairs []Pair
	for i, p := range positions {
		keep := kdtree.NewDistKeeper(r2)
		tree.NearestSet(keep, indexedPoint{pos: p, index: i})
		for _, c := range keep.Heap {
			if c.Comparable == nil {
				continue // sentinel
			}
			if j := c.Comparable.(indexedPoint).index; j > i {
				pairs = append(pairs, Pair{I: i, J: j})
			}
		}
	}
	sortPairs(pairs)
	return pairs
}

// ExhaustiveDetector is the O(N²) reference detector.
type ExhaustiveDetector struct{}

// Detect compares every pair of positions.
func (ExhaustiveDetector) Detect(positions []Vec3, thresholdKm float64) []Pair {
	if len(positions) < 2 || !(thresholdKm >= 0) {
		return nil
	}
	r2 := thresholdKm * thresholdKm
	var pairs []Pair
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			if positions[i].DistanceSquared(positions[j]) <= r2 {
				pairs = append(pairs, Pair{I: i, J: j})
			}
		}
	}
	return pairs
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].I != pairs[b].I {
			return pairs[a].I < pairs[b].I
		}
		return pairs[a].J < pairs[b].J
	})
}

type indexedPoint struct {
	pos   Vec3
	index int
}

func (p indexedPoint) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.pos.X
	case 1:
		return p.pos.Y
	default:
		return p.pos.Z
	}
}

// Compare returns the signed distance of p from the plane through c
// perpendicular to dimension d.
func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(indexedPoint).coord(d)
}

func (p indexedPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between p and c.
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	return p.pos.DistanceSquared(c.(indexedPoint).pos)
}

type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p indexedPoints) Len() int                              { return len(p) }
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }
func (p indexedPoints) Pivot(d kdtree.Dim) int {
	return plane{points: p, dim: d}.Pivot()
}

// plane sorts points along one dimension for median selection.
type plane struct {
	dim    kdtree.Dim
	points indexedPoints
}

func (p plane) Len() int           { return len(p.points) }
func (p plane) Less(i, j int) bool { return p.points[i].coord(p.dim) < p.points[j].coord(p.dim) }
func (p plane) Swap(i, j int)      { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
