package tui

import (
	"sort"
	"strings"

	"github.com/paulmach/orb"

	"sceneaoi/internal/geom"
	"sceneaoi/internal/scene"
	"sceneaoi/internal/selection"
)

// cellToWorld converts a map cell back to scene coordinates using the
// scene extent, zoom and pan.
func (m Model) cellToWorld(cx, cy, w, h int) (float64, float64, bool) {
	if !m.sceneBB.Valid() || w <= 1 || h <= 1 {
		return 0, 0, false
	}
	zx := float64(cx-m.offsetX) / float64(w-1)
	zy := 1.0 - float64(cy-m.offsetY)/float64(h-1)
	nx := 0.5 + (zx-0.5)/m.zoom
	ny := 0.5 + (zy-0.5)/m.zoom
	x := m.sceneBB.MinX + nx*(m.sceneBB.MaxX-m.sceneBB.MinX)
	y := m.sceneBB.MinY + ny*(m.sceneBB.MaxY-m.sceneBB.MinY)
	return x, y, true
}

// screenXYMicro maps scene coordinates into a 2x4 microgrid per cell for braille rendering.
func (m Model) screenXYMicro(x, y float64, w, h int) (int, int, bool) {
	if !m.sceneBB.Valid() {
		return 0, 0, false
	}
	nx := (x - m.sceneBB.MinX) / (m.sceneBB.MaxX - m.sceneBB.MinX)
	ny := (y - m.sceneBB.MinY) / (m.sceneBB.MaxY - m.sceneBB.MinY)
	zx := 0.5 + (nx-0.5)*m.zoom
	zy := 0.5 + (ny-0.5)*m.zoom
	sx := int(zx*float64(w*2-1)) + m.offsetX*2
	sy := int((1.0-zy)*float64(h*4-1)) + m.offsetY*4
	return sx, sy, true
}

// screenXY maps scene coordinates to cells considering zoom and pan.
func (m Model) screenXY(x, y float64, w, h int) (int, int, bool) {
	if !m.sceneBB.Valid() {
		return 0, 0, false
	}
	nx := (x - m.sceneBB.MinX) / (m.sceneBB.MaxX - m.sceneBB.MinX)
	ny := (y - m.sceneBB.MinY) / (m.sceneBB.MaxY - m.sceneBB.MinY)
	zx := 0.5 + (nx-0.5)*m.zoom
	zy := 0.5 + (ny-0.5)*m.zoom
	sx := int(zx*float64(w-1)) + m.offsetX
	sy := int((1.0-zy)*float64(h-1)) + m.offsetY
	return sx, sy, true
}

// cellStep is the scene distance covered by one map cell on each axis.
func (m Model) cellStep() (float64, float64) {
	w, h := m.mapW, m.mapH
	if w <= 1 || h <= 1 || !m.sceneBB.Valid() {
		return 1, 1
	}
	return (m.sceneBB.MaxX - m.sceneBB.MinX) / float64(w-1) / m.zoom,
		(m.sceneBB.MaxY - m.sceneBB.MinY) / float64(h-1) / m.zoom
}

func (m Model) microRing(r orb.Ring, w, h int) [][2]int {
	out := make([][2]int, 0, len(r))
	for _, p := range r {
		if mx, my, ok := m.screenXYMicro(p[0], p[1], w, h); ok {
			out = append(out, [2]int{mx, my})
		}
	}
	return out
}

// fillRing fills the outer ring using the even-odd rule per microgrid scanline.
func fillRing(br *brailleBuf, ring [][2]int) {
	for yMic := 0; yMic < br.h*4; yMic++ {
		var xs []int
		for i := range ring {
			a, b := ring[i], ring[(i+1)%len(ring)]
			if a[1] == b[1] {
				continue
			}
			y0, y1 := a[1], b[1]
			if (yMic >= y0 && yMic < y1) || (yMic >= y1 && yMic < y0) {
				t := float64(yMic-y0) / float64(y1-y0)
				xs = append(xs, int(float64(a[0])+t*float64(b[0]-a[0])))
			}
		}
		sort.Ints(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			for xMic := max(0, xs[i]); xMic <= xs[i+1]; xMic++ {
				br.setPixel(xMic, yMic)
			}
		}
	}
}

func strokeRing(br *brailleBuf, ring [][2]int, closed bool) {
	for i := 0; i+1 < len(ring); i++ {
		br.drawLineMicro(ring[i][0], ring[i][1], ring[i+1][0], ring[i+1][1])
	}
	if closed && len(ring) > 2 {
		a, b := ring[len(ring)-1], ring[0]
		br.drawLineMicro(a[0], a[1], b[0], b[1])
	}
}

// drawGeometry strokes g and, when fill is set, fills its polygons.
func (m Model) drawGeometry(br *brailleBuf, g orb.Geometry, fill bool, w, h int) {
	switch g := g.(type) {
	case orb.Point:
		if mx, my, ok := m.screenXYMicro(g[0], g[1], w, h); ok {
			br.setPixel(mx, my)
		}
	case orb.MultiPoint:
		for _, p := range g {
			m.drawGeometry(br, p, fill, w, h)
		}
	case orb.LineString:
		strokeRing(br, m.microRing(orb.Ring(g), w, h), false)
	case orb.MultiLineString:
		for _, ls := range g {
			m.drawGeometry(br, ls, fill, w, h)
		}
	case orb.Ring:
		m.drawGeometry(br, orb.Polygon{g}, fill, w, h)
	case orb.Polygon:
		for i, r := range g {
			mr := m.microRing(r, w, h)
			if len(mr) < 3 {
				continue
			}
			if fill && i == 0 {
				fillRing(br, mr)
			}
			strokeRing(br, mr, true)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			m.drawGeometry(br, p, fill, w, h)
		}
	}
}

// renderMap draws the scene layers, the AOI rectangle and the model origin.
// Features found inside the AOI are filled.
func (m Model) renderMap(w, h int) string {
	br := newBrailleBuf(w, h)
	sc := m.wf.Scene()
	if sc == nil {
		return dimStyle.Render("No scene loaded. Press tab to open one.")
	}

	inAOI := map[*scene.Feature]bool{}
	if fs := m.wf.Lookups().Features.Snapshot(); fs.HasResult && !fs.Stale {
		for _, f := range fs.Result.All() {
			inAOI[f] = true
		}
	}
	if m.showFeatures {
		for _, l := range sc.Layers {
			for _, f := range l.Features() {
				m.drawGeometry(br, f.Geometry, inAOI[f], w, h)
			}
		}
	}

	store := m.wf.Store()
	sel, hasSel := store.Selection()
	if hasSel {
		m.drawGeometry(br, sel.Ring(), false, w, h)
	}
	lines := br.toLines()

	// styled glyphs replace single cells after the braille pass
	marks := map[[2]int]string{}
	mark := func(p geom.Point, glyph string) {
		if cx, cy, ok := m.screenXY(p.X, p.Y, w, h); ok && cx >= 0 && cy >= 0 && cx < w && cy < h {
			marks[[2]int{cx, cy}] = glyph
		}
	}
	if hasSel {
		editing := store.EditingState() == selection.EditingSelection
		for i, c := range sel.Corners() {
			g := handleStyle.Render("▪")
			if editing && i == m.corner {
				g = activeHandleStyle.Render("■")
			}
			mark(c, g)
		}
	}
	if o, ok := store.ModelOrigin(); ok {
		mark(o, originStyle.Render("✛"))
	}
	if m.hovering {
		marks[[2]int{m.hoverCellX, m.hoverCellY}] = hoverStyle.Render("◯")
	}

	for y := range lines {
		if len(marks) == 0 {
			break
		}
		row := []rune(lines[y])
		var sb strings.Builder
		for x, r := range row {
			if g, ok := marks[[2]int{x, y}]; ok {
				sb.WriteString(g)
				continue
			}
			sb.WriteRune(r)
		}
		lines[y] = sb.String()
	}
	return strings.Join(lines, "\n")
}
