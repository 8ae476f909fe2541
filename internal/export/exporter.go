// Package export writes AOI bundles and keeps a ledger of them.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"sceneaoi/internal/geom"
	"sceneaoi/internal/scene"
)

var ErrNoSelection = errors.New("no selection to export")

// Request describes one export. Features are the lookup results for AOI.
type Request struct {
	// ID names the bundle. A fresh one is generated when empty.
	ID          string
	Scene       string
	AOI         *geom.Rectangle
	ModelOrigin *geom.Point
	Features    []*scene.Feature
	MinZ, MaxZ  *float64
}

// Exporter writes <Dir>/<id>.geojson and records it in the ledger.
type Exporter struct {
	Dir    string
	Ledger *Ledger
	log    *slog.Logger
	now    func() time.Time
}

func NewExporter(dir string, ledger *Ledger, log *slog.Logger) *Exporter {
	if log == nil {
		log = slog.Default()
	}
	return &Exporter{Dir: dir, Ledger: ledger, log: log.With("component", "export"), now: time.Now}
}

// Bundle builds the FeatureCollection for req.
func Bundle(req Request) (*geojson.FeatureCollection, error) {
	if req.AOI == nil {
		return nil, ErrNoSelection
	}
	fc := geojson.NewFeatureCollection()

	aoi := geojson.NewFeature(req.AOI.Polygon())
	aoi.Properties["role"] = "aoi"
	aoi.Properties["scene"] = req.Scene
	aoi.Properties["wkid"] = int(req.AOI.Origin().SR)
	aoi.Properties["area"] = req.AOI.Area()
	if req.MinZ != nil && req.MaxZ != nil {
		aoi.Properties["minZ"] = *req.MinZ
		aoi.Properties["maxZ"] = *req.MaxZ
	}
	fc.Append(aoi)

	if req.ModelOrigin != nil {
		o := geojson.NewFeature(req.ModelOrigin.Orb())
		o.Properties["role"] = "model-origin"
		o.Properties["z"] = req.ModelOrigin.Z
		fc.Append(o)
	}

	for _, f := range req.Features {
		gf := geojson.NewFeature(orb.Clone(f.Geometry))
		gf.ID = f.ID
		for k, v := range f.Properties {
			gf.Properties[k] = v
		}
		gf.Properties["layer"] = f.LayerID
		fc.Append(gf)
	}
	return fc, nil
}

// Export writes the bundle and records it. The file is removed again if
// the ledger insert fails.
func (e *Exporter) Export(ctx context.Context, req Request) (Record, error) {
	fc, err := Bundle(req)
	if err != nil {
		return Record{}, err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return Record{}, fmt.Errorf("encode bundle: %w", err)
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return Record{}, fmt.Errorf("mkdir export dir: %w", err)
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	path := filepath.Join(e.Dir, id+".geojson")
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Record{}, fmt.Errorf("write bundle: %w", err)
	}

	rec := Record{
		ID:           id,
		Scene:        req.Scene,
		AOI:          req.AOI.WKT(),
		Origin:       req.ModelOrigin,
		SR:           req.AOI.Origin().SR,
		FeatureCount: len(req.Features),
		Path:         path,
		CreatedAt:    e.now(),
	}
	if e.Ledger != nil {
		if err := e.Ledger.Insert(ctx, rec); err != nil {
			os.Remove(path)
			return Record{}, err
		}
	}
	e.log.Info("aoi exported", "id", id, "path", path, "features", rec.FeatureCount)
	return rec, nil
}
