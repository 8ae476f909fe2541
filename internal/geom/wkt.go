package geom

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseWKT parses a subset of WKT into Data.
// Supported: POINT(x y), MULTIPOINT(x y, ...), LINESTRING(x y, ...), POLYGON((x y, ...), ...)
func ParseWKT(wkt string) (Data, error) {
	s := strings.TrimSpace(wkt)
	if s == "" {
		return Data{}, errors.New("empty wkt")
	}
	up := strings.ToUpper(s)
	var d Data
	n := 0
	add := func(pts [][2]float64) {
		for _, p := range pts {
			d.BBox = d.BBox.Extend(p[0], p[1], n == 0)
			n++
		}
	}
	body := func(open, end string) (string, error) {
		i := strings.Index(s, open)
		j := strings.LastIndex(s, end)
		if i < 0 || j <= i {
			return "", errors.New("wkt: unbalanced parentheses")
		}
		return s[i+len(open) : j], nil
	}
	switch {
	case strings.HasPrefix(up, "MULTIPOINT"), strings.HasPrefix(up, "POINT"):
		b, err := body("(", ")")
		if err != nil {
			return Data{}, err
		}
		b = strings.NewReplacer("(", "", ")", "").Replace(b)
		pts, err := parseTuples(b)
		if err != nil {
			return Data{}, err
		}
		add(pts)
		d.Points = append(d.Points, pts...)
	case strings.HasPrefix(up, "LINESTRING"):
		b, err := body("(", ")")
		if err != nil {
			return Data{}, err
		}
		ls, err := parseTuples(b)
		if err != nil {
			return Data{}, err
		}
		add(ls)
		d.Lines = append(d.Lines, ls)
	case strings.HasPrefix(up, "POLYGON"):
		b, err := body("((", "))")
		if err != nil {
			return Data{}, err
		}
		// normalize spaces around ring separators
		b = strings.ReplaceAll(b, ") , (", "),(")
		b = strings.ReplaceAll(b, "), (", "),(")
		var poly [][][2]float64
		for _, rp := range strings.Split(b, "),(") {
			ring, err := parseTuples(rp)
			if err != nil {
				return Data{}, err
			}
			add(ring)
			poly = append(poly, ring)
		}
		d.Polygons = append(d.Polygons, poly)
	default:
		return Data{}, errors.New("unsupported wkt type")
	}
	if n == 0 {
		return Data{}, errors.New("wkt: no coordinates parsed")
	}
	return d, nil
}

// RectangleFromWKT returns the rectangle bounding any parsed WKT geometry,
// with its origin at the minimum corner.
func RectangleFromWKT(wkt string, sr SpatialReference) (Rectangle, error) {
	d, err := ParseWKT(wkt)
	if err != nil {
		return Rectangle{}, err
	}
	o := NewPoint(d.BBox.MinX, d.BBox.MinY, 0, sr)
	t := NewPoint(d.BBox.MaxX, d.BBox.MaxY, 0, sr)
	return MakeRectangle(o, t), nil
}

// parseTuples reads "x y[ z[ m]]" tuples. Every tuple must carry finite
// x and y values.
func parseTuples(block string) ([][2]float64, error) {
	var out [][2]float64
	for _, tup := range strings.Split(block, ",") {
		parts := strings.Fields(tup)
		if len(parts) < 2 || len(parts) > 4 {
			return nil, fmt.Errorf("wkt: malformed coordinate %q", strings.TrimSpace(tup))
		}
		var xy [2]float64
		for i := range xy {
			v, err := strconv.ParseFloat(parts[i], 64)
			if err != nil {
				return nil, fmt.Errorf("wkt: malformed coordinate %q", strings.TrimSpace(tup))
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("wkt: non-finite coordinate %q", strings.TrimSpace(tup))
			}
			xy[i] = v
		}
		out = append(out, xy)
	}
	return out, nil
}
