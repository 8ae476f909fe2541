// Package workflow assembles one AOI session: the selection machine and
// store, the gesture router, the lookups and the exporter.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sceneaoi/internal/export"
	"sceneaoi/internal/geom"
	"sceneaoi/internal/lookup"
	"sceneaoi/internal/scene"
	"sceneaoi/internal/selection"
)

var (
	ErrExportNotAllowed = errors.New("export not allowed in the current state")
	ErrNoScene          = errors.New("no scene loaded")
)

// Workflow is driven from a single goroutine: Dispatch, Gesture,
// LoadScene, BeginExport and EndExport must not run concurrently.
// RunExport may run anywhere.
type Workflow struct {
	log      *slog.Logger
	machine  *selection.Machine
	router   *selection.Router
	lookups  *lookup.Lookups
	exporter *export.Exporter
	latency  time.Duration

	mu      sync.Mutex
	scene   *scene.Scene
	watcher *scene.Watcher
}

// New creates a workflow without a scene. latency is applied to every
// layer and ground request of scenes loaded later.
func New(exporter *export.Exporter, latency time.Duration, log *slog.Logger) *Workflow {
	if log == nil {
		log = slog.Default()
	}
	store := selection.NewStore()
	w := &Workflow{
		log:      log.With("component", "workflow"),
		machine:  selection.NewMachine(store, log),
		router:   selection.NewRouter(log),
		lookups:  lookup.New(log),
		exporter: exporter,
		latency:  latency,
	}
	w.lookups.Bind(store)
	return w
}

func (w *Workflow) Store() *selection.Store     { return w.machine.Store() }
func (w *Workflow) Machine() *selection.Machine { return w.machine }
func (w *Workflow) Lookups() *lookup.Lookups    { return w.lookups }

func (w *Workflow) Scene() *scene.Scene {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scene
}

// Dispatch feeds a canonical event to the machine.
func (w *Workflow) Dispatch(e selection.Event) bool {
	return w.machine.Dispatch(e)
}

// Gesture routes a raw gesture through its tool adapter and dispatches the
// resulting event, if any.
func (w *Workflow) Gesture(g selection.Gesture) (selection.Event, bool) {
	e, ok := w.router.Route(g)
	if !ok {
		w.log.Debug("gesture dropped", "tool", g.Tool, "phase", g.Phase)
		return nil, false
	}
	return e, w.machine.Dispatch(e)
}

// LoadScene opens dir and makes it the active scene.
func (w *Workflow) LoadScene(dir string, sr geom.SpatialReference) (*scene.Scene, error) {
	sc, err := scene.Load(dir, sr)
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}
	w.SetScene(sc)
	return sc, nil
}

// SetScene activates sc. The selection is reset even when sc has the id of
// the current scene, since its content may have changed.
func (w *Workflow) SetScene(sc *scene.Scene) {
	layers := make([]lookup.FeatureLayer, len(sc.Layers))
	for i, l := range sc.Layers {
		l.SetLatency(w.latency)
		layers[i] = l
	}
	var ground lookup.ElevationSampler
	if sc.Ground != nil {
		sc.Ground.SetLatency(w.latency)
		ground = sc.Ground
	}

	w.mu.Lock()
	w.scene = sc
	w.mu.Unlock()

	w.machine.Dispatch(selection.Reset{Scene: sc.ID})
	w.lookups.SetScene(layers, ground)
	w.log.Info("scene loaded", "scene", sc.ID, "layers", len(sc.Layers), "ground", sc.Ground != nil)
}

// Reload reopens the active scene.
func (w *Workflow) Reload() error {
	sc := w.Scene()
	if sc == nil {
		return ErrNoScene
	}
	_, err := w.LoadScene(sc.Dir, sc.SR)
	return err
}

// Watch calls notify when a file of the active scene changes. notify runs
// on a timer goroutine; the owner decides when to Reload.
func (w *Workflow) Watch(debounce time.Duration, notify func()) error {
	sc := w.Scene()
	if sc == nil {
		return ErrNoScene
	}
	fw, err := scene.NewWatcher(debounce, w.log, func(string) { notify() })
	if err != nil {
		return err
	}
	if err := fw.Watch(sc.Files()); err != nil {
		fw.Close()
		return err
	}
	fw.Start()

	w.mu.Lock()
	prev := w.watcher
	w.watcher = fw
	w.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return nil
}

// SelectWKT replaces the selection with the bounding rectangle of wkt.
func (w *Workflow) SelectWKT(wkt string) error {
	sr := geom.WebMercator
	if sc := w.Scene(); sc != nil {
		sr = sc.SR
	}
	r, err := geom.RectangleFromWKT(wkt, sr)
	if err != nil {
		return err
	}
	if w.machine.Matches(selection.StateSelected) {
		w.machine.Dispatch(selection.Update{Origin: r.Origin(), Terminal: r.Terminal()})
		return nil
	}
	for _, e := range []selection.Event{
		selection.CreateStart{},
		selection.CreateCommit{Point: r.Origin()},
		selection.CreateCommit{Point: r.Terminal()},
	} {
		if !w.machine.Dispatch(e) {
			return fmt.Errorf("cannot select while %s", w.machine.State().Name())
		}
	}
	return nil
}

// BeginExport moves the machine to exporting and captures what to export.
func (w *Workflow) BeginExport() (export.Request, error) {
	id := uuid.NewString()
	if !w.machine.Dispatch(selection.ExportStart{ID: id}) {
		return export.Request{}, ErrExportNotAllowed
	}
	snap := w.Store().Snapshot()
	req := export.Request{
		ID:          id,
		Scene:       snap.SceneID,
		AOI:         snap.Selection,
		ModelOrigin: snap.ModelOrigin,
	}
	if o := w.lookups.Origin.Snapshot(); req.ModelOrigin != nil && o.HasResult && !o.Stale {
		p := o.Result
		req.ModelOrigin = &p
	}
	if c := w.lookups.Corners.Snapshot(); c.HasResult && !c.Stale {
		lo, hi := c.Result.Min, c.Result.Max
		req.MinZ, req.MaxZ = &lo, &hi
	}
	return req, nil
}

// RunExport collects the AOI features and writes the bundle. It does not
// touch the machine and may run on any goroutine.
func (w *Workflow) RunExport(ctx context.Context, req export.Request) (export.Record, error) {
	if w.exporter == nil {
		return export.Record{}, errors.New("no exporter configured")
	}
	if req.AOI == nil {
		return export.Record{}, export.ErrNoSelection
	}
	fs, err := w.lookups.CollectFeatures(ctx, *req.AOI)
	if err != nil {
		return export.Record{}, err
	}
	req.Features = fs.All()
	return w.exporter.Export(ctx, req)
}

// EndExport records the outcome of the export run id. It reports false
// when the run was superseded by a selection change and the outcome dropped.
func (w *Workflow) EndExport(id string, err error) bool {
	var ev selection.Event = selection.ExportComplete{ID: id}
	if err != nil {
		w.log.Error("export failed", "id", id, "err", err)
		ev = selection.ExportFail{ID: id}
	}
	if !w.machine.Dispatch(ev) {
		w.log.Debug("stale export outcome ignored", "id", id, "event", ev.Kind())
		return false
	}
	return true
}

// Export runs a whole export synchronously.
func (w *Workflow) Export(ctx context.Context) (export.Record, error) {
	req, err := w.BeginExport()
	if err != nil {
		return export.Record{}, err
	}
	rec, err := w.RunExport(ctx, req)
	w.EndExport(req.ID, err)
	return rec, err
}

// Close stops the watcher and cancels every lookup.
func (w *Workflow) Close() {
	w.mu.Lock()
	fw := w.watcher
	w.watcher = nil
	w.mu.Unlock()
	if fw != nil {
		fw.Close()
	}
	w.lookups.Dispose()
}
