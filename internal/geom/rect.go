package geom

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Corner indexes within a Rectangle ring.
const (
	CornerOrigin         = 0 // oo
	CornerOriginTerminal = 1 // ot: origin X, terminal Y
	CornerTerminal       = 2 // tt
	CornerTerminalOrigin = 3 // to: terminal X, origin Y
)

// Rectangle is a closed axis-aligned ring [oo, ot, tt, to, oo].
// It is a value type: rectangles compare with ==.
type Rectangle [5]Point

// MakeRectangle builds the ring spanned by origin and terminal.
// Derived corners take the origin's elevation and spatial reference.
func MakeRectangle(origin, terminal Point) Rectangle {
	ot := Point{X: origin.X, Y: terminal.Y, Z: origin.Z, SR: origin.SR}
	to := Point{X: terminal.X, Y: origin.Y, Z: origin.Z, SR: origin.SR}
	return Rectangle{origin, ot, terminal, to, origin}
}

func (r Rectangle) Origin() Point   { return r[CornerOrigin] }
func (r Rectangle) Terminal() Point { return r[CornerTerminal] }

// Corners returns the four distinct vertices in ring order.
func (r Rectangle) Corners() [4]Point {
	return [4]Point{r[0], r[1], r[2], r[3]}
}

// RealignAfterEdit restores rectangularity after an interactive edit moved
// one corner of previous to produce next. The first corner (in ring order)
// whose planar coordinates differ is taken as the moved one, and its two
// neighbours are recomputed from it. When nothing moved, next is returned
// unchanged.
func RealignAfterEdit(next, previous Rectangle) Rectangle {
	moved := -1
	for i := 0; i < 4; i++ {
		if !next[i].SameXY(previous[i]) {
			moved = i
			break
		}
	}
	if moved < 0 {
		return next
	}
	out := next
	c := next[moved]
	switch moved {
	case CornerOrigin:
		out[1] = withXY(out[1], c.X, out[1].Y)
		out[3] = withXY(out[3], out[3].X, c.Y)
	case CornerOriginTerminal:
		out[0] = withXY(out[0], c.X, out[0].Y)
		out[2] = withXY(out[2], out[2].X, c.Y)
	case CornerTerminal:
		out[1] = withXY(out[1], out[1].X, c.Y)
		out[3] = withXY(out[3], c.X, out[3].Y)
	case CornerTerminalOrigin:
		out[2] = withXY(out[2], c.X, out[2].Y)
		out[0] = withXY(out[0], out[0].X, c.Y)
	}
	out[4] = out[0]
	return out
}

func withXY(p Point, x, y float64) Point {
	p.X, p.Y = x, y
	return p
}

// MoveCorner returns r with corner i replaced by p, leaving the others as is.
// The result is generally not rectangular; feed it to RealignAfterEdit.
func (r Rectangle) MoveCorner(i int, p Point) Rectangle {
	if i < 0 || i > 3 {
		return r
	}
	r[i] = p
	if i == CornerOrigin {
		r[4] = p
	}
	return r
}

// IsAxisAligned reports whether the ring is closed and every edge is
// parallel to an axis.
func (r Rectangle) IsAxisAligned() bool {
	if !r[0].SameXY(r[4]) {
		return false
	}
	return r[0].X == r[1].X && r[1].Y == r[2].Y && r[2].X == r[3].X && r[3].Y == r[0].Y
}

// Ring returns the planar ring.
func (r Rectangle) Ring() orb.Ring {
	ring := make(orb.Ring, len(r))
	for i, p := range r {
		ring[i] = p.Orb()
	}
	return ring
}

// Polygon returns the rectangle as a single-ring polygon.
func (r Rectangle) Polygon() orb.Polygon {
	return orb.Polygon{r.Ring()}
}

// Bound returns the planar bounding box.
func (r Rectangle) Bound() orb.Bound {
	return r.Ring().Bound()
}

func (r Rectangle) BBox() BBox {
	return BBoxFromBound(r.Bound())
}

// Area is the unsigned planar area.
func (r Rectangle) Area() float64 {
	return math.Abs(planar.Area(r.Ring()))
}

// WKT renders the ring as a POLYGON.
func (r Rectangle) WKT() string {
	parts := make([]string, len(r))
	for i, p := range r {
		parts[i] = fmt.Sprintf("%g %g", p.X, p.Y)
	}
	return "POLYGON ((" + strings.Join(parts, ", ") + "))"
}
