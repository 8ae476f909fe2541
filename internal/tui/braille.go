package tui

// dotBits maps a micro-pixel inside a cell, indexed [row][column], to its
// bit in the braille pattern (U+2800 block).
var dotBits = [4][2]uint8{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// brailleBuf is a canvas of 2x4 micro-pixels per terminal cell.
type brailleBuf struct {
	w, h int // in cells
	mask []uint8
}

func newBrailleBuf(w, h int) *brailleBuf {
	return &brailleBuf{w: w, h: h, mask: make([]uint8, w*h)}
}

func (b *brailleBuf) setPixel(mx, my int) {
	if mx < 0 || my < 0 {
		return
	}
	cx, cy := mx/2, my/4
	if cx >= b.w || cy >= b.h {
		return
	}
	b.mask[cy*b.w+cx] |= dotBits[my%4][mx%2]
}

// drawLineMicro draws a Bresenham line on the microgrid.
func (b *brailleBuf) drawLineMicro(x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy
	for {
		b.setPixel(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (b *brailleBuf) toLines() []string {
	out := make([]string, b.h)
	row := make([]rune, b.w)
	for y := 0; y < b.h; y++ {
		for x, mk := range b.mask[y*b.w : (y+1)*b.w] {
			row[x] = ' '
			if mk != 0 {
				row[x] = rune(0x2800 + int(mk))
			}
		}
		out[y] = string(row)
	}
	return out
}
