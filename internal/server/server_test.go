package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sceneaoi/internal/export"
	"sceneaoi/internal/geom"
	"sceneaoi/internal/workflow"
)

const parcels = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"p1","properties":{"name":"Lot 1"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[6,0],[6,6],[0,6],[0,0]]]}}
]}`

func newServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	sceneDir := filepath.Join(dir, "scene")
	require.NoError(t, os.MkdirAll(sceneDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sceneDir, "parcels.geojson"), []byte(parcels), 0o644))

	ledger, err := export.OpenLedger(context.Background(), filepath.Join(dir, "exports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	wf := workflow.New(export.NewExporter(filepath.Join(dir, "out"), ledger, nil), 0, nil)
	t.Cleanup(wf.Close)
	_, err = wf.LoadScene(sceneDir, geom.WebMercator)
	require.NoError(t, err)
	return New(wf, ledger, nil, false)
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func event(t *testing.T, s *Server, body string) map[string]any {
	t.Helper()
	code, out := do(t, s, http.MethodPost, "/events", body)
	require.Equal(t, http.StatusOK, code)
	return out
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	code, out := do(t, s, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alive", out["status"])
}

func TestEventsDriveState(t *testing.T) {
	s := newServer(t)
	out := event(t, s, `{"type":"origin.start"}`)
	assert.Equal(t, false, out["handled"])

	event(t, s, `{"type":"create.start"}`)
	event(t, s, `{"type":"create.commit","point":{"x":1,"y":1,"wkid":3857}}`)
	out = event(t, s, `{"type":"create.commit","point":{"x":4,"y":3,"wkid":3857}}`)
	assert.Equal(t, true, out["handled"])

	state := out["state"].(map[string]any)
	assert.Equal(t, "selected", state["state"])
	store := state["store"].(map[string]any)
	assert.Equal(t, "confirming", store["workflowStage"])

	s.wf.Lookups().Wait()
	code, out := do(t, s, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, code)
	lookups := out["lookups"].([]any)
	features := lookups[0].(map[string]any)
	assert.Equal(t, "features", features["name"])
	assert.Equal(t, "success", features["status"])
	result := features["result"].(map[string]any)
	assert.Len(t, result["features"], 1)
}

func TestBadEvents(t *testing.T) {
	s := newServer(t)
	code, out := do(t, s, http.MethodPost, "/events", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "empty body", out["error"])

	code, _ = do(t, s, http.MethodPost, "/events", `{"type":"warp"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/gestures", `{"tool":"lasso","phase":"start"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGestures(t *testing.T) {
	s := newServer(t)
	for _, body := range []string{
		`{"tool":"create","phase":"start"}`,
		`{"tool":"create","phase":"complete","point":{"x":0,"y":0,"wkid":3857}}`,
		`{"tool":"create","phase":"complete","point":{"x":2,"y":2,"wkid":3857}}`,
		`{"tool":"origin","phase":"start"}`,
	} {
		code, _ := do(t, s, http.MethodPost, "/gestures", body)
		require.Equal(t, http.StatusOK, code, body)
	}
	code, out := do(t, s, http.MethodPost, "/gestures", `{"tool":"origin","phase":"complete","point":{"x":1,"y":1,"wkid":3857}}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "origin.complete", out["event"])

	s.wf.Lookups().Wait()
	_, out = do(t, s, http.MethodGet, "/state", "")
	fp := out["lookups"].([]any)[3].(map[string]any)
	assert.Equal(t, "footprint", fp["name"])
	assert.Equal(t, "p1", fp["result"].(map[string]any)["id"])
}

func TestExportRoutes(t *testing.T) {
	s := newServer(t)
	code, _ := do(t, s, http.MethodPost, "/export", "")
	assert.Equal(t, http.StatusConflict, code)

	event(t, s, `{"type":"create.start"}`)
	event(t, s, `{"type":"create.commit","point":{"x":0,"y":0,"wkid":3857}}`)
	event(t, s, `{"type":"create.commit","point":{"x":8,"y":8,"wkid":3857}}`)

	code, out := do(t, s, http.MethodPost, "/export", "")
	require.Equal(t, http.StatusCreated, code)
	assert.EqualValues(t, 1, out["featureCount"])

	req := httptest.NewRequest(http.MethodGet, "/exports?limit=5", nil)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var recs []export.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, out["id"], recs[0].ID)

	_, st := do(t, s, http.MethodGet, "/state", "")
	store := st["store"].(map[string]any)
	assert.Equal(t, "exported", store["exportState"])
	assert.Equal(t, out["id"], store["exportId"])

	code, _ = do(t, s, http.MethodGet, "/exports?limit=many", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLayerToggle(t *testing.T) {
	s := newServer(t)
	code, _ := do(t, s, http.MethodPost, "/layers/roads", `{"visible":false}`)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, s, http.MethodPost, "/layers/parcels", `{"visible":false}`)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, s.wf.Lookups().LayerVisible("parcels"))
}

func TestLookupViewsFollowSnapshots(t *testing.T) {
	s := newServer(t)
	event(t, s, `{"type":"create.start"}`)
	event(t, s, `{"type":"create.commit","point":{"x":0,"y":0,"wkid":3857}}`)
	event(t, s, `{"type":"create.commit","point":{"x":8,"y":8,"wkid":3857}}`)
	event(t, s, `{"type":"origin.start"}`)
	event(t, s, `{"type":"origin.complete","point":{"x":2,"y":2,"wkid":3857}}`)
	s.wf.Lookups().Wait()

	_, out := do(t, s, http.MethodGet, "/state", "")
	views := out["lookups"].([]any)
	require.Len(t, views, 4)

	lk := s.wf.Lookups()
	type snap struct {
		status    string
		stale     bool
		hasResult bool
	}
	f, c, o, fp := lk.Features.Snapshot(), lk.Corners.Snapshot(), lk.Origin.Snapshot(), lk.Footprint.Snapshot()
	want := map[string]snap{
		"features":  {f.Status.String(), f.Stale, f.HasResult},
		"corners":   {c.Status.String(), c.Stale, c.HasResult},
		"origin":    {o.Status.String(), o.Stale, o.HasResult},
		"footprint": {fp.Status.String(), fp.Stale, fp.HasResult},
	}
	for _, raw := range views {
		v := raw.(map[string]any)
		name := v["name"].(string)
		w, ok := want[name]
		require.True(t, ok, name)
		assert.Equal(t, w.status, v["status"], name)
		assert.Equal(t, w.stale, v["stale"], name)
		_, has := v["result"]
		assert.Equal(t, w.hasResult, has, name)
	}
}
