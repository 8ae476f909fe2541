// Package lookup binds the AOI query coordinators to a selection store:
// features inside the AOI, corner elevations, the model origin elevation
// and the footprint feature under the model origin.
package lookup

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"sceneaoi/internal/geom"
	"sceneaoi/internal/query"
	"sceneaoi/internal/scene"
	"sceneaoi/internal/selection"
)

// FeatureLayer is a queryable set of features. *scene.Layer implements it.
type FeatureLayer interface {
	ID() string
	QueryFeatures(ctx context.Context, b orb.Bound) ([]*scene.Feature, error)
	FeaturesAt(ctx context.Context, p orb.Point) ([]*scene.Feature, error)
}

// ElevationSampler drapes points onto the ground. *scene.Ground implements it.
type ElevationSampler interface {
	SampleElevation(ctx context.Context, pts []geom.Point) ([]geom.Point, error)
}

var errNoGround = errors.New("no ground loaded")

// AOIKey identifies an AOI request. Gen changes whenever the ready
// collaborators change, so an unchanged rectangle is queried again.
type AOIKey struct {
	AOI geom.Rectangle
	Gen int
}

// PointKey identifies a point request.
type PointKey struct {
	Point geom.Point
	Gen   int
}

// FeatureSet is the combined result of the per-layer AOI queries.
// Layers that failed contribute nothing and are listed in Failed.
type FeatureSet struct {
	ByLayer map[string][]*scene.Feature
	Failed  []string
}

func (fs FeatureSet) Count() int {
	n := 0
	for _, f := range fs.ByLayer {
		n += len(f)
	}
	return n
}

// All returns every feature ordered by layer then id.
func (fs FeatureSet) All() []*scene.Feature {
	var out []*scene.Feature
	for _, f := range fs.ByLayer {
		out = append(out, f...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LayerID != out[j].LayerID {
			return out[i].LayerID < out[j].LayerID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CornerElevations holds the draped AOI corners in ring order.
type CornerElevations struct {
	Corners [4]geom.Point
	Min     float64
	Max     float64
	Mean    float64
}

// Footprint is the smallest polygon feature containing the model origin.
type Footprint struct {
	Feature *scene.Feature
	Area    float64
	Failed  []string
}

func (f Footprint) Found() bool { return f.Feature != nil }

// Status summarises one coordinator for display.
type Status struct {
	Name      string
	Status    query.Status
	Stale     bool
	HasResult bool
	Err       error
}

// Lookups owns the four coordinators of one workflow.
type Lookups struct {
	log *slog.Logger

	mu     sync.Mutex
	layers []FeatureLayer
	hidden map[string]bool
	ground ElevationSampler
	gen    int
	store  *selection.Store
	unbind []func()

	lmu       sync.Mutex
	nextID    int
	listeners map[int]func(name string)

	Features  *query.Coordinator[AOIKey, FeatureSet]
	Corners   *query.Coordinator[AOIKey, CornerElevations]
	Origin    *query.Coordinator[PointKey, geom.Point]
	Footprint *query.Coordinator[PointKey, Footprint]
}

// New creates unbound lookups with no collaborators.
func New(log *slog.Logger) *Lookups {
	if log == nil {
		log = slog.Default()
	}
	l := &Lookups{
		log:       log.With("component", "lookup"),
		hidden:    make(map[string]bool),
		listeners: make(map[int]func(string)),
	}
	l.Features = query.New("features", l.queryFeatures, log)
	l.Corners = query.New("corners", l.queryCorners, log)
	l.Origin = query.New("origin", l.queryOrigin, log)
	l.Footprint = query.New("footprint", l.queryFootprint, log)

	l.Features.OnChange(func(query.Snapshot[AOIKey, FeatureSet]) { l.changed("features") })
	l.Corners.OnChange(func(query.Snapshot[AOIKey, CornerElevations]) { l.changed("corners") })
	l.Origin.OnChange(func(query.Snapshot[PointKey, geom.Point]) { l.changed("origin") })
	l.Footprint.OnChange(func(query.Snapshot[PointKey, Footprint]) { l.changed("footprint") })
	return l
}

// OnChange registers fn for status changes of any coordinator. fn gets the
// coordinator name and must not block.
func (l *Lookups) OnChange(fn func(name string)) func() {
	l.lmu.Lock()
	defer l.lmu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	return func() {
		l.lmu.Lock()
		defer l.lmu.Unlock()
		delete(l.listeners, id)
	}
}

func (l *Lookups) changed(name string) {
	l.lmu.Lock()
	ls := make([]func(string), 0, len(l.listeners))
	for _, fn := range l.listeners {
		ls = append(ls, fn)
	}
	l.lmu.Unlock()
	for _, fn := range ls {
		fn(name)
	}
}

// Bind follows the selection and model origin of store.
func (l *Lookups) Bind(store *selection.Store) {
	l.mu.Lock()
	for _, off := range l.unbind {
		off()
	}
	l.store = store
	l.unbind = []func(){
		store.On(selection.TopicSelection, func(selection.Topic) { l.sync() }),
		store.On(selection.TopicModelOrigin, func(selection.Topic) { l.sync() }),
	}
	l.mu.Unlock()
	l.sync()
}

// SetScene replaces the collaborators and re-runs every lookup.
func (l *Lookups) SetScene(layers []FeatureLayer, ground ElevationSampler) {
	l.mu.Lock()
	l.layers = layers
	l.ground = ground
	l.hidden = make(map[string]bool)
	l.gen++
	l.mu.Unlock()
	l.sync()
}

// SetLayerVisible includes or excludes a layer from the feature lookup.
func (l *Lookups) SetLayerVisible(id string, visible bool) {
	l.mu.Lock()
	if l.hidden[id] == !visible {
		l.mu.Unlock()
		return
	}
	l.hidden[id] = !visible
	l.gen++
	l.mu.Unlock()
	l.sync()
}

func (l *Lookups) LayerVisible(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.hidden[id]
}

// sync points every coordinator at the current store values.
func (l *Lookups) sync() {
	l.mu.Lock()
	store, gen := l.store, l.gen
	hasLayers := len(l.visibleLocked()) > 0
	hasGround := l.ground != nil
	l.mu.Unlock()
	if store == nil {
		return
	}

	aoi, hasAOI := store.Selection()
	switch {
	case hasAOI && hasLayers:
		l.Features.Update(AOIKey{AOI: aoi, Gen: gen})
	default:
		l.Features.Clear()
	}
	switch {
	case hasAOI && hasGround:
		l.Corners.Update(AOIKey{AOI: aoi, Gen: gen})
	default:
		l.Corners.Clear()
	}

	origin, hasOrigin := store.ModelOrigin()
	if !hasOrigin && hasAOI {
		origin, hasOrigin = aoi.Origin(), true
	}
	switch {
	case hasOrigin && hasGround:
		l.Origin.Update(PointKey{Point: origin, Gen: gen})
	default:
		l.Origin.Clear()
	}

	mo, hasModelOrigin := store.ModelOrigin()
	switch {
	case hasModelOrigin && hasLayers:
		l.Footprint.Update(PointKey{Point: mo, Gen: gen})
	default:
		l.Footprint.Clear()
	}
}

func (l *Lookups) visibleLocked() []FeatureLayer {
	var out []FeatureLayer
	for _, fl := range l.layers {
		if !l.hidden[fl.ID()] {
			out = append(out, fl)
		}
	}
	return out
}

func (l *Lookups) collaborators() ([]FeatureLayer, ElevationSampler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visibleLocked(), l.ground
}

func (l *Lookups) queryFeatures(ctx context.Context, k AOIKey) (FeatureSet, error) {
	layers, _ := l.collaborators()
	bound := k.AOI.Bound()
	tasks := make([]query.Task[[]*scene.Feature], len(layers))
	for i, fl := range layers {
		tasks[i] = query.Task[[]*scene.Feature]{
			Key: fl.ID(),
			Run: func(ctx context.Context) ([]*scene.Feature, error) {
				return fl.QueryFeatures(ctx, bound)
			},
		}
	}
	outcomes := query.SettleAll(ctx, tasks)
	if err := ctx.Err(); err != nil {
		return FeatureSet{}, err
	}
	fs := FeatureSet{ByLayer: make(map[string][]*scene.Feature)}
	for _, o := range outcomes {
		if o.Err != nil {
			l.log.Warn("layer query failed", "layer", o.Key, "err", o.Err)
			fs.Failed = append(fs.Failed, o.Key)
			continue
		}
		fs.ByLayer[o.Key] = o.Value
	}
	return fs, nil
}

func (l *Lookups) queryCorners(ctx context.Context, k AOIKey) (CornerElevations, error) {
	_, ground := l.collaborators()
	if ground == nil {
		return CornerElevations{}, errNoGround
	}
	corners := k.AOI.Corners()
	draped, err := ground.SampleElevation(ctx, corners[:])
	if err != nil {
		return CornerElevations{}, err
	}
	var ce CornerElevations
	zs := make([]float64, len(draped))
	for i, p := range draped {
		ce.Corners[i] = p
		zs[i] = p.Z
	}
	ce.Min, ce.Max, ce.Mean = floats.Min(zs), floats.Max(zs), stat.Mean(zs, nil)
	return ce, nil
}

func (l *Lookups) queryOrigin(ctx context.Context, k PointKey) (geom.Point, error) {
	_, ground := l.collaborators()
	if ground == nil {
		return geom.Point{}, errNoGround
	}
	draped, err := ground.SampleElevation(ctx, []geom.Point{k.Point})
	if err != nil {
		return geom.Point{}, err
	}
	return draped[0], nil
}

func (l *Lookups) queryFootprint(ctx context.Context, k PointKey) (Footprint, error) {
	layers, _ := l.collaborators()
	p := k.Point.Orb()
	tasks := make([]query.Task[[]*scene.Feature], len(layers))
	for i, fl := range layers {
		tasks[i] = query.Task[[]*scene.Feature]{
			Key: fl.ID(),
			Run: func(ctx context.Context) ([]*scene.Feature, error) {
				return fl.FeaturesAt(ctx, p)
			},
		}
	}
	outcomes := query.SettleAll(ctx, tasks)
	if err := ctx.Err(); err != nil {
		return Footprint{}, err
	}
	var fp Footprint
	for _, o := range outcomes {
		if o.Err != nil {
			l.log.Warn("footprint query failed", "layer", o.Key, "err", o.Err)
			fp.Failed = append(fp.Failed, o.Key)
			continue
		}
		for _, f := range o.Value {
			if a := f.Area(); fp.Feature == nil || a < fp.Area {
				fp.Feature, fp.Area = f, a
			}
		}
	}
	return fp, nil
}

// CollectFeatures runs the feature lookup for aoi outside the coordinator.
func (l *Lookups) CollectFeatures(ctx context.Context, aoi geom.Rectangle) (FeatureSet, error) {
	return l.queryFeatures(ctx, AOIKey{AOI: aoi})
}

// Statuses lists the coordinators in display order.
func (l *Lookups) Statuses() []Status {
	f, c, o, fp := l.Features.Snapshot(), l.Corners.Snapshot(), l.Origin.Snapshot(), l.Footprint.Snapshot()
	return []Status{
		{Name: "features", Status: f.Status, Stale: f.Stale, HasResult: f.HasResult, Err: f.Err},
		{Name: "corners", Status: c.Status, Stale: c.Stale, HasResult: c.HasResult, Err: c.Err},
		{Name: "origin", Status: o.Status, Stale: o.Stale, HasResult: o.HasResult, Err: o.Err},
		{Name: "footprint", Status: fp.Status, Stale: fp.Stale, HasResult: fp.HasResult, Err: fp.Err},
	}
}

// Wait blocks until no request goroutine is running.
func (l *Lookups) Wait() {
	l.Features.Wait()
	l.Corners.Wait()
	l.Origin.Wait()
	l.Footprint.Wait()
}

// Dispose unbinds from the store and cancels every request in flight.
func (l *Lookups) Dispose() {
	l.mu.Lock()
	for _, off := range l.unbind {
		off()
	}
	l.unbind = nil
	l.store = nil
	l.mu.Unlock()
	l.Features.Dispose()
	l.Corners.Dispose()
	l.Origin.Dispose()
	l.Footprint.Dispose()
}
