package scene

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sceneaoi/internal/geom"
)

const buildings = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"b1","properties":{"name":"Depot"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,4],[0,4],[0,0]]]}},
 {"type":"Feature","properties":{"name":"Mill"},"geometry":{"type":"Polygon","coordinates":[[[10,10],[12,10],[12,13],[10,13],[10,10]]]}},
 {"type":"Feature","id":7,"properties":{},"geometry":{"type":"Point","coordinates":[20,20]}}
]}`

const ground = `# 0,0,10
0,10,20
10,20,30
20,30,40
`

func writeScene(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "buildings.geojson"), []byte(buildings), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, GroundFile), []byte(ground), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeScene(t)
	sc, err := Load(dir, geom.WebMercator)
	require.NoError(t, err)
	require.Len(t, sc.Layers, 1)
	assert.Equal(t, "buildings", sc.Layers[0].ID())
	assert.Equal(t, 3, sc.Layers[0].Len())
	require.NotNil(t, sc.Ground)
	assert.Len(t, sc.Files(), 2)

	b, ok := sc.Bound()
	require.True(t, ok)
	assert.Equal(t, orb.Point{0, 0}, b.Min)
	assert.Equal(t, orb.Point{20, 20}, b.Max)
}

func TestLayerQueryFeatures(t *testing.T) {
	sc, err := Load(writeScene(t), geom.WebMercator)
	require.NoError(t, err)
	l := sc.Layer("buildings")
	require.NotNil(t, l)

	got, err := l.QueryFeatures(context.Background(), orb.Bound{Min: orb.Point{3, 3}, Max: orb.Point{11, 11}})
	require.NoError(t, err)
	var titles []string
	for _, f := range got {
		titles = append(titles, f.Title())
	}
	assert.ElementsMatch(t, []string{"Depot", "Mill"}, titles)

	got, err = l.QueryFeatures(context.Background(), orb.Bound{Min: orb.Point{20, 20}, Max: orb.Point{20, 20}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "7", got[0].ID)

	got, err = l.QueryFeatures(context.Background(), orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{9, 9}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLayerFeaturesAt(t *testing.T) {
	sc, err := Load(writeScene(t), geom.WebMercator)
	require.NoError(t, err)
	got, err := sc.Layers[0].FeaturesAt(context.Background(), orb.Point{11, 12})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Mill", got[0].Title())
	assert.InDelta(t, 6.0, got[0].Area(), 1e-9)
}

func TestLayerQueryHonoursCancel(t *testing.T) {
	sc, err := Load(writeScene(t), geom.WebMercator)
	require.NoError(t, err)
	l := sc.Layers[0]
	l.SetLatency(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.QueryFeatures(ctx, orb.Bound{Max: orb.Point{1, 1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGroundBilinear(t *testing.T) {
	g, err := ReadGround(strings.NewReader(ground))
	require.NoError(t, err)
	assert.Equal(t, geom.BBox{MaxX: 20, MaxY: 20}, g.Extent())

	z, err := g.ElevationAt(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, z, 1e-9)

	z, err = g.ElevationAt(5, 5)
	require.NoError(t, err)
	assert.InDelta(t, 10, z, 1e-9)

	z, err = g.ElevationAt(20, 20)
	require.NoError(t, err)
	assert.InDelta(t, 40, z, 1e-9)

	_, err = g.ElevationAt(21, 0)
	assert.ErrorIs(t, err, ErrOutsideGround)
}

func TestGroundSampleElevation(t *testing.T) {
	g, err := ReadGround(strings.NewReader(ground))
	require.NoError(t, err)
	pts := []geom.Point{
		geom.NewPoint(10, 0, 0, geom.WebMercator),
		geom.NewPoint(10, 10, 0, geom.WebMercator),
	}
	out, err := g.SampleElevation(context.Background(), pts)
	require.NoError(t, err)
	assert.Equal(t, 10.0, out[0].Z)
	assert.Equal(t, 20.0, out[1].Z)
	assert.Equal(t, geom.WebMercator, out[1].SR)

	_, err = g.SampleElevation(context.Background(), append(pts, geom.NewPoint(-1, 0, 0, geom.WebMercator)))
	assert.ErrorIs(t, err, ErrOutsideGround)
}

func TestReadGroundErrors(t *testing.T) {
	for name, in := range map[string]string{
		"empty":     "",
		"no header": "1,2,3\n4,5,6\n",
		"ragged":    "# 0,0,1\n1,2\n3\n",
		"one row":   "# 0,0,1\n1,2\n",
		"bad cell":  "# 0,0,0\n1,2\n3,4\n",
	} {
		_, err := ReadGround(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestWatcherDebounces(t *testing.T) {
	dir := writeScene(t)
	path := filepath.Join(dir, "buildings.geojson")
	changed := make(chan string, 4)
	w, err := NewWatcher(50*time.Millisecond, nil, func(p string) { changed <- p })
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{path}))
	w.Start()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(buildings), 0o644))
	}
	select {
	case p := <-changed:
		assert.Equal(t, path, p)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case <-changed:
		t.Fatal("burst reported twice")
	case <-time.After(200 * time.Millisecond):
	}
}
