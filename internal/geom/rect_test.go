package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pt(x, y float64) Point {
	return NewPoint(x, y, 0, WebMercator)
}

func xy(r Rectangle) [][2]float64 {
	out := make([][2]float64, len(r))
	for i, p := range r {
		out[i] = [2]float64{p.X, p.Y}
	}
	return out
}

func TestMakeRectangle(t *testing.T) {
	r := MakeRectangle(pt(0, 0), pt(10, 5))
	assert.Equal(t, [][2]float64{{0, 0}, {0, 5}, {10, 5}, {10, 0}, {0, 0}}, xy(r))
	assert.Equal(t, pt(0, 0), r.Origin())
	assert.Equal(t, pt(10, 5), r.Terminal())
	assert.True(t, r.IsAxisAligned())
	assert.InDelta(t, 50.0, r.Area(), 1e-9)
}

func TestMakeRectangleCornersShareOneAxis(t *testing.T) {
	cases := [][2]Point{
		{pt(0, 0), pt(10, 5)},
		{pt(10, 5), pt(0, 0)},
		{pt(-3, 7), pt(4, -2)},
		{pt(1, 1), pt(1, 1)},
	}
	for _, c := range cases {
		o, tm := c[0], c[1]
		r := MakeRectangle(o, tm)
		assert.Equal(t, r[0], r[4], "ring must be closed")
		assert.Equal(t, o, r[CornerOrigin])
		assert.Equal(t, tm, r[CornerTerminal])
		// ot shares X with origin and Y with terminal; to the reverse.
		assert.Equal(t, o.X, r[CornerOriginTerminal].X)
		assert.Equal(t, tm.Y, r[CornerOriginTerminal].Y)
		assert.Equal(t, tm.X, r[CornerTerminalOrigin].X)
		assert.Equal(t, o.Y, r[CornerTerminalOrigin].Y)
	}
}

func TestRealignIdempotent(t *testing.T) {
	r := MakeRectangle(pt(2, 3), pt(8, 9))
	assert.Equal(t, r, RealignAfterEdit(r, r))
}

func TestRealignIgnoresElevationChanges(t *testing.T) {
	r := MakeRectangle(pt(2, 3), pt(8, 9))
	draped := r
	draped[2] = draped[2].WithZ(42)
	assert.Equal(t, draped, RealignAfterEdit(draped, r))
}

func TestRealignConcreteTerminalDrag(t *testing.T) {
	r := MakeRectangle(pt(0, 0), pt(10, 5))
	moved := r.MoveCorner(CornerTerminal, pt(12, 5))
	got := RealignAfterEdit(moved, r)
	assert.Equal(t, [][2]float64{{0, 0}, {0, 5}, {12, 5}, {12, 0}, {0, 0}}, xy(got))
}

func TestRealignRoundTripEveryCorner(t *testing.T) {
	r := MakeRectangle(pt(0, 0), pt(10, 5))
	targets := []Point{pt(-4, 2), pt(3, 9), pt(14, 7), pt(11, -6)}
	for i := 0; i < 4; i++ {
		for _, v := range targets {
			got := RealignAfterEdit(r.MoveCorner(i, v), r)
			assert.Equal(t, v, got[i], "corner %d", i)
			assert.True(t, got.IsAxisAligned(), "corner %d moved to %v: %v", i, v, got)
		}
	}
}

func TestRealignFirstMovedCornerWins(t *testing.T) {
	r := MakeRectangle(pt(0, 0), pt(10, 5))
	next := r.MoveCorner(CornerOriginTerminal, pt(-1, 6))
	next = next.MoveCorner(CornerTerminalOrigin, pt(20, 20))
	got := RealignAfterEdit(next, r)
	// corner 1 drives the result: 0 and 2 follow it, corner 3 keeps the raw value.
	assert.Equal(t, pt(-1, 6), got[1])
	assert.Equal(t, -1.0, got[0].X)
	assert.Equal(t, 6.0, got[2].Y)
	assert.Equal(t, pt(20, 20), got[3])
	assert.Equal(t, got[0], got[4])
}

func TestRectangleWKTRoundTrip(t *testing.T) {
	r := MakeRectangle(pt(0, 0), pt(10, 5))
	assert.Equal(t, "POLYGON ((0 0, 0 5, 10 5, 10 0, 0 0))", r.WKT())

	back, err := RectangleFromWKT(r.WKT(), WebMercator)
	assert.NoError(t, err)
	assert.Equal(t, r, back)
}
