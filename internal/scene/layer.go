package scene

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// boundPad keeps degenerate bounds (points, axis-parallel lines) non-empty
// in the rtree, which rejects zero-length sides.
const boundPad = 1e-9

// Feature is one indexed GeoJSON feature of a layer.
type Feature struct {
	ID         string
	LayerID    string
	Geometry   orb.Geometry
	Properties geojson.Properties
	Bound      orb.Bound
}

// Bounds implements rtreego.Spatial.
func (f *Feature) Bounds() rtreego.Rect {
	return rectFromBound(f.Bound)
}

// Title picks a display name from the common name properties.
func (f *Feature) Title() string {
	for _, k := range []string{"name", "title", "label", "id"} {
		if s, ok := f.Properties[k].(string); ok && s != "" {
			return s
		}
	}
	return f.ID
}

// Contains reports whether the feature's area covers p. Only polygonal
// geometries have an area.
func (f *Feature) Contains(p orb.Point) bool {
	if !f.Bound.Contains(p) {
		return false
	}
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Bound:
		return g.Contains(p)
	}
	return false
}

// Area is the planar area of polygonal geometries, zero otherwise.
func (f *Feature) Area() float64 {
	switch f.Geometry.(type) {
	case orb.Polygon, orb.MultiPolygon, orb.Bound:
		a := planar.Area(f.Geometry)
		if a < 0 {
			return -a
		}
		return a
	}
	return 0
}

func rectFromBound(b orb.Bound) rtreego.Rect {
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	r, _ := rtreego.NewRect(
		rtreego.Point{b.Min[0] - boundPad, b.Min[1] - boundPad},
		[]float64{w + 2*boundPad, h + 2*boundPad},
	)
	return r
}

// Layer is a named set of features answering bound intersection queries.
type Layer struct {
	id       string
	features []*Feature
	tree     *rtreego.Rtree
	bound    orb.Bound
	latency  time.Duration
}

// NewLayer indexes the features of fc.
func NewLayer(id string, fc *geojson.FeatureCollection) *Layer {
	l := &Layer{id: id, tree: rtreego.NewTree(2, 25, 50)}
	for i, gf := range fc.Features {
		if gf.Geometry == nil {
			continue
		}
		f := &Feature{
			ID:         featureID(id, i, gf),
			LayerID:    id,
			Geometry:   gf.Geometry,
			Properties: gf.Properties,
			Bound:      gf.Geometry.Bound(),
		}
		if len(l.features) == 0 {
			l.bound = f.Bound
		} else {
			l.bound = l.bound.Union(f.Bound)
		}
		l.features = append(l.features, f)
		l.tree.Insert(f)
	}
	return l
}

func featureID(layer string, i int, f *geojson.Feature) string {
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("%s/%d", layer, i)
}

// LoadLayer reads a GeoJSON FeatureCollection file. The layer id is the
// file name without extension.
func LoadLayer(path string) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geojson %s: %w", path, err)
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return NewLayer(id, fc), nil
}

func (l *Layer) ID() string { return l.id }

func (l *Layer) Len() int { return len(l.features) }

func (l *Layer) Bound() orb.Bound { return l.bound }

// Features returns every feature in file order.
func (l *Layer) Features() []*Feature { return l.features }

// SetLatency delays every query, simulating a remote feature service.
func (l *Layer) SetLatency(d time.Duration) { l.latency = d }

// QueryFeatures returns the features whose bounds intersect b. It returns
// ctx.Err() as soon as ctx is done.
func (l *Layer) QueryFeatures(ctx context.Context, b orb.Bound) ([]*Feature, error) {
	if err := wait(ctx, l.latency); err != nil {
		return nil, err
	}
	hits := l.tree.SearchIntersect(rectFromBound(b))
	out := make([]*Feature, 0, len(hits))
	for _, h := range hits {
		f := h.(*Feature)
		if f.Bound.Intersects(b) {
			out = append(out, f)
		}
	}
	return out, nil
}

// FeaturesAt returns the features whose area contains p.
func (l *Layer) FeaturesAt(ctx context.Context, p orb.Point) ([]*Feature, error) {
	cands, err := l.QueryFeatures(ctx, orb.Bound{Min: p, Max: p})
	if err != nil {
		return nil, err
	}
	var out []*Feature
	for _, f := range cands {
		if f.Contains(p) {
			out = append(out, f)
		}
	}
	return out, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
