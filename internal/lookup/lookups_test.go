package lookup

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sceneaoi/internal/geom"
	"sceneaoi/internal/query"
	"sceneaoi/internal/scene"
	"sceneaoi/internal/selection"
)

type fakeLayer struct {
	id       string
	features []*scene.Feature
	err      error
}

func (f *fakeLayer) ID() string { return f.id }

func (f *fakeLayer) QueryFeatures(ctx context.Context, b orb.Bound) ([]*scene.Feature, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*scene.Feature
	for _, ft := range f.features {
		if ft.Bound.Intersects(b) {
			out = append(out, ft)
		}
	}
	return out, nil
}

func (f *fakeLayer) FeaturesAt(ctx context.Context, p orb.Point) ([]*scene.Feature, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*scene.Feature
	for _, ft := range f.features {
		if ft.Contains(p) {
			out = append(out, ft)
		}
	}
	return out, nil
}

func square(layer, id string, x0, y0, x1, y1 float64) *scene.Feature {
	b := orb.Bound{Min: orb.Point{x0, y0}, Max: orb.Point{x1, y1}}
	return &scene.Feature{ID: id, LayerID: layer, Geometry: b.ToPolygon(), Bound: b}
}

type failingGround struct{}

func (failingGround) SampleElevation(context.Context, []geom.Point) ([]geom.Point, error) {
	return nil, errors.New("elevation service unavailable")
}

func pt(x, y float64) geom.Point { return geom.NewPoint(x, y, 0, geom.WebMercator) }

func flatGround(t *testing.T) *scene.Ground {
	t.Helper()
	g, err := scene.ReadGround(strings.NewReader("# 0,0,10\n0,10,20\n10,20,30\n20,30,40\n"))
	require.NoError(t, err)
	return g
}

func setup(t *testing.T, layers []FeatureLayer, ground ElevationSampler) (*selection.Machine, *Lookups) {
	t.Helper()
	m := selection.NewMachine(selection.NewStore(), nil)
	l := New(nil)
	l.SetScene(layers, ground)
	l.Bind(m.Store())
	t.Cleanup(l.Dispose)
	return m, l
}

func draw(m *selection.Machine, o, t geom.Point) {
	m.Dispatch(selection.CreateStart{})
	m.Dispatch(selection.CreateCommit{Point: o})
	m.Dispatch(selection.CreateCommit{Point: t})
}

func TestFeaturesSettleAllTolerance(t *testing.T) {
	layers := []FeatureLayer{
		&fakeLayer{id: "roads", features: []*scene.Feature{square("roads", "r1", 1, 1, 2, 2)}},
		&fakeLayer{id: "water", err: errors.New("timeout")},
		&fakeLayer{id: "buildings", features: []*scene.Feature{
			square("buildings", "b1", 3, 3, 4, 4),
			square("buildings", "b2", 50, 50, 60, 60),
		}},
	}
	m, l := setup(t, layers, nil)
	draw(m, pt(0, 0), pt(10, 10))
	l.Wait()

	snap := l.Features.Snapshot()
	require.Equal(t, query.StatusSuccess, snap.Status)
	assert.Equal(t, 2, snap.Result.Count())
	assert.Equal(t, []string{"water"}, snap.Result.Failed)
	var ids []string
	for _, f := range snap.Result.All() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"b1", "r1"}, ids)
}

func TestCornersAndOrigin(t *testing.T) {
	m, l := setup(t, nil, flatGround(t))
	draw(m, pt(0, 0), pt(10, 10))
	l.Wait()

	c := l.Corners.Snapshot()
	require.Equal(t, query.StatusSuccess, c.Status)
	assert.Equal(t, 0.0, c.Result.Corners[0].Z)
	assert.Equal(t, 20.0, c.Result.Corners[2].Z)
	assert.Equal(t, 0.0, c.Result.Min)
	assert.Equal(t, 20.0, c.Result.Max)
	assert.InDelta(t, 10.0, c.Result.Mean, 1e-9)

	// without a model origin the AOI origin is sampled
	o := l.Origin.Snapshot()
	require.Equal(t, query.StatusSuccess, o.Status)
	assert.Equal(t, pt(0, 0), o.Result)

	m.Dispatch(selection.OriginStart{})
	m.Dispatch(selection.OriginComplete{Point: pt(10, 0)})
	l.Wait()
	o = l.Origin.Snapshot()
	assert.Equal(t, pt(10, 0).WithZ(10), o.Result)
	assert.False(t, o.Stale)
}

func TestAggregateFailureKeepsStaleResult(t *testing.T) {
	m, l := setup(t, nil, flatGround(t))
	draw(m, pt(0, 0), pt(10, 10))
	l.Wait()
	before := l.Corners.Snapshot().Result

	// moving the AOI off the grid fails the whole sampling request
	m.Dispatch(selection.Update{Origin: pt(0, 0), Terminal: pt(30, 30)})
	l.Wait()
	snap := l.Corners.Snapshot()
	assert.Equal(t, query.StatusError, snap.Status)
	assert.ErrorIs(t, snap.Err, scene.ErrOutsideGround)
	assert.True(t, snap.Stale)
	assert.Equal(t, before, snap.Result)
}

func TestFailingSamplerSurfacesError(t *testing.T) {
	m, l := setup(t, nil, failingGround{})
	draw(m, pt(0, 0), pt(1, 1))
	l.Wait()
	st := l.Statuses()
	assert.Equal(t, "corners", st[1].Name)
	assert.Equal(t, query.StatusError, st[1].Status)
	assert.False(t, st[1].HasResult)
}

func TestFootprint(t *testing.T) {
	layers := []FeatureLayer{
		&fakeLayer{id: "parcels", features: []*scene.Feature{square("parcels", "p1", 0, 0, 20, 20)}},
		&fakeLayer{id: "buildings", features: []*scene.Feature{square("buildings", "b1", 2, 2, 4, 5)}},
	}
	m, l := setup(t, layers, nil)
	draw(m, pt(0, 0), pt(10, 10))
	l.Wait()
	assert.Equal(t, query.StatusIdle, l.Footprint.Snapshot().Status, "no model origin yet")

	m.Dispatch(selection.OriginStart{})
	m.Dispatch(selection.OriginComplete{Point: pt(3, 3)})
	l.Wait()
	fp := l.Footprint.Snapshot()
	require.Equal(t, query.StatusSuccess, fp.Status)
	require.True(t, fp.Result.Found())
	assert.Equal(t, "b1", fp.Result.Feature.ID)
	assert.InDelta(t, 6.0, fp.Result.Area, 1e-9)
}

func TestResetClearsLookups(t *testing.T) {
	layers := []FeatureLayer{&fakeLayer{id: "roads", features: []*scene.Feature{square("roads", "r1", 1, 1, 2, 2)}}}
	m, l := setup(t, layers, flatGround(t))
	draw(m, pt(0, 0), pt(10, 10))
	l.Wait()
	m.Dispatch(selection.Reset{Scene: "next"})
	l.Wait()
	for _, s := range l.Statuses() {
		assert.Equal(t, query.StatusIdle, s.Status, s.Name)
		assert.False(t, s.HasResult, s.Name)
	}
}

func TestHiddenLayerRequeries(t *testing.T) {
	layers := []FeatureLayer{
		&fakeLayer{id: "roads", features: []*scene.Feature{square("roads", "r1", 1, 1, 2, 2)}},
		&fakeLayer{id: "buildings", features: []*scene.Feature{square("buildings", "b1", 3, 3, 4, 4)}},
	}
	m, l := setup(t, layers, nil)
	var changes atomic.Int32
	l.OnChange(func(n string) {
		if n == "features" {
			changes.Add(1)
		}
	})
	draw(m, pt(0, 0), pt(10, 10))
	l.Wait()
	assert.Equal(t, 2, l.Features.Snapshot().Result.Count())

	l.SetLayerVisible("roads", false)
	l.Wait()
	assert.False(t, l.LayerVisible("roads"))
	snap := l.Features.Snapshot()
	assert.Equal(t, 1, snap.Result.Count())
	assert.Contains(t, snap.Result.ByLayer, "buildings")
	assert.Positive(t, changes.Load())
}
