// Package scene loads the collaborators the AOI lookups query: GeoJSON
// feature layers and an elevation grid.
package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"

	"sceneaoi/internal/geom"
)

// GroundFile is the elevation grid file name inside a scene directory.
const GroundFile = "elevation.csv"

// Scene is one opened directory.
type Scene struct {
	ID     string
	Dir    string
	SR     geom.SpatialReference
	Layers []*Layer
	Ground *Ground
}

// Load opens every *.geojson layer and the optional elevation grid in dir.
func Load(dir string, sr geom.SpatialReference) (*Scene, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", dir, err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	sc := &Scene{ID: abs, Dir: abs, SR: sr}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".geojson") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		l, err := LoadLayer(filepath.Join(abs, n))
		if err != nil {
			return nil, err
		}
		sc.Layers = append(sc.Layers, l)
	}
	gp := filepath.Join(abs, GroundFile)
	if _, err := os.Stat(gp); err == nil {
		g, err := LoadGround(gp)
		if err != nil {
			return nil, err
		}
		sc.Ground = g
	}
	return sc, nil
}

// Files lists the paths a watcher should follow.
func (s *Scene) Files() []string {
	var out []string
	for _, l := range s.Layers {
		out = append(out, filepath.Join(s.Dir, l.ID()+".geojson"))
	}
	if s.Ground != nil {
		out = append(out, filepath.Join(s.Dir, GroundFile))
	}
	return out
}

func (s *Scene) Layer(id string) *Layer {
	for _, l := range s.Layers {
		if l.ID() == id {
			return l
		}
	}
	return nil
}

// Bound covers all layers and the ground.
func (s *Scene) Bound() (orb.Bound, bool) {
	var b orb.Bound
	ok := false
	for _, l := range s.Layers {
		if l.Len() == 0 {
			continue
		}
		if !ok {
			b, ok = l.Bound(), true
		} else {
			b = b.Union(l.Bound())
		}
	}
	if s.Ground != nil {
		e := s.Ground.Extent()
		gb := orb.Bound{Min: orb.Point{e.MinX, e.MinY}, Max: orb.Point{e.MaxX, e.MaxY}}
		if !ok {
			b, ok = gb, true
		} else {
			b = b.Union(gb)
		}
	}
	return b, ok
}

// Point makes a point in the scene's spatial reference.
func (s *Scene) Point(x, y float64) geom.Point {
	return geom.NewPoint(x, y, 0, s.SR)
}
