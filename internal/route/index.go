package route

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// indexedPoint couples a 2D route position with its sequence index so a
// nearest-neighbour query can recover the waypoint, not just its coordinates.
type indexedPoint struct {
	pos kdtree.Point
	idx int
}

func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(indexedPoint)
	return p.pos[d] - q.pos[d]
}

func (p indexedPoint) Dims() int { return len(p.pos) }

func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(indexedPoint)
	return p.pos.Distance(q.pos)
}

// indexedPoints implements kdtree.Interface following the gonum pattern for
// points that carry associated data.
type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p indexedPoints) Len() int                      { return len(p) }
func (p indexedPoints) Pivot(d kdtree.Dim) int {
	return plane{Dim: d, indexedPoints: p}.Pivot()
}
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane is a sorting helper over a single dimension of indexedPoints.
type plane struct {
	kdtree.Dim
	indexedPoints
}

func (p plane) Less(i, j int) bool {
	return p.indexedPoints[i].pos[p.Dim] < p.indexedPoints[j].pos[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.indexedPoints = p.indexedPoints[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}

// Index is a read-only nearest-neighbour index over a route's 2D positions.
// It is built once when the route is first established and never rebuilt.
type Index struct {
	tree      *kdtree.Tree
	positions []Point
}

// NewIndex builds the spatial index for a route. The route must hold at
// least two waypoints; a system with no usable route cannot operate, so this
// is a startup-time error rather than something handled per query.
func NewIndex(r Route) (*Index, error) {
	if len(r) < 2 {
		return nil, fmt.Errorf("route index requires at least 2 waypoints, got %d", len(r))
	}
	pts := make(indexedPoints, len(r))
	positions := make([]Point, len(r))
	for i, wp := range r {
		positions[i] = wp.Pose.Position
		pts[i] = indexedPoint{pos: kdtree.Point{wp.Pose.Position.X, wp.Pose.Position.Y}, idx: i}
	}
	return &Index{tree: kdtree.New(pts, false), positions: positions}, nil
}

// Len returns the number of indexed positions.
func (ix *Index) Len() int { return len(ix.positions) }

// Position returns the indexed 2D position at sequence index i.
func (ix *Index) Position(i int) Point { return ix.positions[i] }

// Nearest returns the sequence index of the route position closest to
// (x, y) by Euclidean distance. Ties fall to whichever point the tree
// visits first.
func (ix *Index) Nearest(x, y float64) int {
	got, _ := ix.tree.Nearest(indexedPoint{pos: kdtree.Point{x, y}, idx: -1})
	return got.(indexedPoint).idx
}

// NearestAhead returns the closest route index corrected for direction of
// travel. If the query point has already passed the raw closest waypoint
// along the route, the next index (modulo route length) is returned instead,
// so the result is never behind the vehicle.
func (ix *Index) NearestAhead(x, y float64) int {
	closest := ix.Nearest(x, y)
	prev := (closest - 1 + len(ix.positions)) % len(ix.positions)

	cp := ix.positions[closest]
	pp := ix.positions[prev]

	// Hyperplane test through the closest point: positive projection of the
	// query onto the segment direction means the point is past it.
	dot := (cp.X-pp.X)*(x-cp.X) + (cp.Y-pp.Y)*(y-cp.Y)
	if dot > 0 {
		closest = (closest + 1) % len(ix.positions)
	}
	return closest
}
