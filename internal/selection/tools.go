package selection

import (
	"log/slog"

	"sceneaoi/internal/geom"
)

// Tool is the drawing tool a gesture belongs to.
type Tool int

const (
	ToolCreate Tool = iota
	ToolReshape
	ToolOrigin
)

func (t Tool) String() string {
	switch t {
	case ToolReshape:
		return "reshape"
	case ToolOrigin:
		return "origin"
	default:
		return "create"
	}
}

// Phase is the position of a gesture event within its sequence.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseActive
	PhaseComplete
	PhaseCancel
)

func (p Phase) String() string {
	return [...]string{"start", "active", "complete", "cancel"}[p]
}

// VertexOp describes what an interactive edit did to the ring.
type VertexOp int

const (
	VertexMove VertexOp = iota
	VertexAdd
	VertexRemove
	ShapeMove
)

// EditInfo accompanies reshape gestures.
type EditInfo struct {
	Op    VertexOp
	Index int
}

// Gesture is a raw event from a drawing source. Point is set by
// point-placement sources, Ring by polygon sources.
type Gesture struct {
	Tool  Tool
	Phase Phase
	Point *geom.Point
	Ring  []geom.Point
	Edit  *EditInfo
}

// Adapter turns gestures of one tool into canonical events.
type Adapter interface {
	Adapt(g Gesture) (Event, bool)
}

// CreateAdapter tracks a two-click rectangle creation: start, origin
// commit, then any number of terminal previews and the terminal commit.
type CreateAdapter struct {
	step int // 0 inactive, 1 awaiting origin, 2 awaiting terminal
}

func (a *CreateAdapter) Adapt(g Gesture) (Event, bool) {
	switch g.Phase {
	case PhaseStart:
		a.step = 1
		return CreateStart{}, true
	case PhaseCancel:
		if a.step == 0 {
			return nil, false
		}
		a.step = 0
		return CreateCancel{}, true
	}
	p, ok := gesturePoint(g)
	if !ok || a.step == 0 {
		return nil, false
	}
	switch g.Phase {
	case PhaseActive:
		if a.step != 2 {
			return nil, false
		}
		return CreateActive{Point: p}, true
	case PhaseComplete:
		if a.step == 1 {
			a.step = 2
		} else {
			a.step = 0
		}
		return CreateCommit{Point: p}, true
	}
	return nil, false
}

// gesturePoint takes the placed point, or the terminal corner of a
// polygon source's rectangle.
func gesturePoint(g Gesture) (geom.Point, bool) {
	if g.Point != nil {
		return *g.Point, true
	}
	if len(g.Ring) > geom.CornerTerminal {
		return g.Ring[geom.CornerTerminal], true
	}
	return geom.Point{}, false
}

// ReshapeAdapter forwards drag-handle edits of an existing rectangle.
// Vertex insertion or removal would break the four-corner ring, so such
// edits are dropped.
type ReshapeAdapter struct {
	Log    *slog.Logger
	active bool
}

func (a *ReshapeAdapter) Adapt(g Gesture) (Event, bool) {
	switch g.Phase {
	case PhaseStart:
		a.active = true
		return ReshapeStart{}, true
	case PhaseCancel:
		if !a.active {
			return nil, false
		}
		a.active = false
		return ReshapeCancel{}, true
	}
	if !a.active {
		return nil, false
	}
	ring, ok := a.ring(g)
	if !ok {
		return nil, false
	}
	if g.Phase == PhaseComplete {
		a.active = false
		return ReshapeComplete{Ring: ring}, true
	}
	return ReshapeActive{Ring: ring}, true
}

func (a *ReshapeAdapter) ring(g Gesture) (geom.Rectangle, bool) {
	if g.Edit != nil && (g.Edit.Op == VertexAdd || g.Edit.Op == VertexRemove) {
		a.logger().Warn("unsupported vertex edit dropped", "op", g.Edit.Op, "index", g.Edit.Index)
		return geom.Rectangle{}, false
	}
	if len(g.Ring) != len(geom.Rectangle{}) {
		a.logger().Warn("reshape ring is not a closed four-corner ring", "vertices", len(g.Ring))
		return geom.Rectangle{}, false
	}
	var r geom.Rectangle
	copy(r[:], g.Ring)
	return r, true
}

func (a *ReshapeAdapter) logger() *slog.Logger {
	if a.Log == nil {
		return slog.Default()
	}
	return a.Log
}

// OriginAdapter forwards model origin placement.
type OriginAdapter struct {
	active bool
}

func (a *OriginAdapter) Adapt(g Gesture) (Event, bool) {
	switch g.Phase {
	case PhaseStart:
		a.active = true
		return OriginStart{}, true
	case PhaseCancel:
		if !a.active {
			return nil, false
		}
		a.active = false
		return OriginCancel{}, true
	}
	if !a.active || g.Point == nil {
		return nil, false
	}
	if g.Phase == PhaseComplete {
		a.active = false
		return OriginComplete{Point: *g.Point}, true
	}
	return OriginActive{Point: *g.Point}, true
}

// Router fans one gesture stream out to the adapter of each gesture's tool.
type Router struct {
	adapters map[Tool]Adapter
}

// NewRouter creates a router with the standard adapters.
func NewRouter(log *slog.Logger) *Router {
	return &Router{adapters: map[Tool]Adapter{
		ToolCreate:  &CreateAdapter{},
		ToolReshape: &ReshapeAdapter{Log: log},
		ToolOrigin:  &OriginAdapter{},
	}}
}

// Use replaces the adapter for t.
func (r *Router) Use(t Tool, a Adapter) {
	r.adapters[t] = a
}

// Route converts g into a canonical event, if its adapter accepts it.
func (r *Router) Route(g Gesture) (Event, bool) {
	a, ok := r.adapters[g.Tool]
	if !ok {
		return nil, false
	}
	return a.Adapt(g)
}
