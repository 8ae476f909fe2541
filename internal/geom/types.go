package geom

import (
	"fmt"

	"github.com/paulmach/orb"
)

// SpatialReference is the well-known id (WKID) of a coordinate system.
type SpatialReference int

const (
	WGS84       SpatialReference = 4326
	WebMercator SpatialReference = 3857
)

// Point is an immutable 3D coordinate tagged with its spatial reference.
// Two points are equal when their coordinates and reference are equal.
type Point struct {
	X  float64          `json:"x"`
	Y  float64          `json:"y"`
	Z  float64          `json:"z"`
	SR SpatialReference `json:"wkid"`
}

// NewPoint creates a new Point.
func NewPoint(x, y, z float64, sr SpatialReference) Point {
	return Point{X: x, Y: y, Z: z, SR: sr}
}

// WithZ returns a copy of p at elevation z.
func (p Point) WithZ(z float64) Point {
	p.Z = z
	return p
}

// SameXY reports whether p and o share planar coordinates.
func (p Point) SameXY(o Point) bool {
	return p.X == o.X && p.Y == o.Y
}

// Orb returns the planar part of p.
func (p Point) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", p.X, p.Y, p.Z)
}

type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Valid reports whether the box has a positive extent on both axes.
func (b BBox) Valid() bool {
	return b.MaxX > b.MinX && b.MaxY > b.MinY
}

// Extend grows b to include (x, y). The zero box is treated as empty when first is set.
func (b BBox) Extend(x, y float64, first bool) BBox {
	if first {
		return BBox{MinX: x, MinY: y, MaxX: x, MaxY: y}
	}
	if x < b.MinX {
		b.MinX = x
	}
	if y < b.MinY {
		b.MinY = y
	}
	if x > b.MaxX {
		b.MaxX = x
	}
	if y > b.MaxY {
		b.MaxY = y
	}
	return b
}

// BBoxFromBound converts an orb bound.
func BBoxFromBound(b orb.Bound) BBox {
	return BBox{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}
}

// Data is a minimal geometry container for parsed WKT
type Data struct {
	Points   [][2]float64
	Lines    [][][2]float64
	Polygons [][][][2]float64 // polygons with rings (first outer, following holes)
	BBox     BBox
}

// Empty reports whether no coordinates were parsed.
func (d Data) Empty() bool {
	return len(d.Points)+len(d.Lines)+len(d.Polygons) == 0
}
