package selection

import (
	"log/slog"
	"sync"

	"sceneaoi/internal/geom"
)

// StateName identifies a machine state.
type StateName string

const (
	StateIdle              StateName = "idle"
	StatePlacingOrigin     StateName = "placing-origin"
	StatePlacingTerminal   StateName = "placing-terminal"
	StateSelected          StateName = "selected"
	StateUpdatingSelection StateName = "updating-selection"
	StateUpdatingOrigin    StateName = "updating-origin"
)

// State is one of Idle, PlacingOrigin, PlacingTerminal, Selected,
// UpdatingSelection or UpdatingOrigin. Each variant carries the data the
// store shows while the machine is in it.
type State interface {
	Name() StateName
	project() values
}

type Idle struct{}

type PlacingOrigin struct{}

// PlacingTerminal previews the rectangle spanned by Origin and Terminal.
type PlacingTerminal struct {
	Origin   geom.Point
	Terminal geom.Point
}

// Selected holds a finished rectangle.
type Selected struct {
	Selection   geom.Rectangle
	ModelOrigin *geom.Point
	Export      ExportState
	ExportID    string
}

// UpdatingSelection is a reshape gesture in progress. Snapshot and
// SnapshotExport are restored verbatim on cancel.
type UpdatingSelection struct {
	Snapshot         geom.Rectangle
	SnapshotExport   ExportState
	SnapshotExportID string
	Current          geom.Rectangle
	ModelOrigin      *geom.Point
}

// UpdatingOrigin is a model origin drag in progress. Snapshot and
// SnapshotExport are restored verbatim on cancel.
type UpdatingOrigin struct {
	Selection        geom.Rectangle
	Snapshot         *geom.Point
	SnapshotExport   ExportState
	SnapshotExportID string
	Current          *geom.Point
}

func (Idle) Name() StateName              { return StateIdle }
func (PlacingOrigin) Name() StateName     { return StatePlacingOrigin }
func (PlacingTerminal) Name() StateName   { return StatePlacingTerminal }
func (Selected) Name() StateName          { return StateSelected }
func (UpdatingSelection) Name() StateName { return StateUpdatingSelection }
func (UpdatingOrigin) Name() StateName    { return StateUpdatingOrigin }

func (Idle) project() values { return values{editing: EditingIdle} }

func (PlacingOrigin) project() values { return values{editing: EditingCreating} }

func (s PlacingTerminal) project() values {
	r := geom.MakeRectangle(s.Origin, s.Terminal)
	return values{editing: EditingCreating, selection: &r}
}

func (s Selected) project() values {
	r := s.Selection
	return values{editing: EditingIdle, selection: &r, modelOrigin: s.ModelOrigin, export: s.Export, exportID: s.ExportID}
}

func (s UpdatingSelection) project() values {
	r := s.Current
	return values{editing: EditingSelection, selection: &r, modelOrigin: s.ModelOrigin}
}

func (s UpdatingOrigin) project() values {
	r := s.Selection
	return values{editing: EditingOrigin, selection: &r, modelOrigin: s.Current}
}

// Transition returns the state that follows s on e, and whether e was
// handled. Unhandled events leave s unchanged.
func Transition(s State, e Event) (State, bool) {
	if r, ok := e.(Reset); ok {
		if r.Scene == "" {
			return s, false
		}
		return Idle{}, true
	}

	switch st := s.(type) {
	case Idle:
		if _, ok := e.(CreateStart); ok {
			return PlacingOrigin{}, true
		}

	case PlacingOrigin:
		switch ev := e.(type) {
		case CreateCommit:
			return PlacingTerminal{Origin: ev.Point, Terminal: ev.Point}, true
		case CreateCancel:
			return Idle{}, true
		}

	case PlacingTerminal:
		switch ev := e.(type) {
		case CreateActive:
			st.Terminal = ev.Point
			return st, true
		case CreateCommit:
			return Selected{Selection: geom.MakeRectangle(st.Origin, ev.Point)}, true
		case CreateCancel:
			return Idle{}, true
		}

	case Selected:
		switch ev := e.(type) {
		case CreateStart:
			return PlacingOrigin{}, true
		case Update:
			next := geom.MakeRectangle(ev.Origin, ev.Terminal)
			if next != st.Selection {
				st.Selection = next
				st.Export, st.ExportID = NotExported, ""
			}
			return st, true
		case ReshapeStart:
			return UpdatingSelection{
				Snapshot:         st.Selection,
				SnapshotExport:   st.Export,
				SnapshotExportID: st.ExportID,
				Current:          st.Selection,
				ModelOrigin:      st.ModelOrigin,
			}, true
		case OriginStart:
			return UpdatingOrigin{
				Selection:        st.Selection,
				Snapshot:         st.ModelOrigin,
				SnapshotExport:   st.Export,
				SnapshotExportID: st.ExportID,
				Current:          st.ModelOrigin,
			}, true
		case ExportStart:
			if st.Export == Exporting {
				return s, false
			}
			st.Export, st.ExportID = Exporting, ev.ID
			return st, true
		case ExportComplete:
			if st.Export != Exporting || ev.ID != st.ExportID {
				return s, false
			}
			st.Export = Exported
			return st, true
		case ExportFail:
			if st.Export != Exporting || ev.ID != st.ExportID {
				return s, false
			}
			st.Export, st.ExportID = NotExported, ""
			return st, true
		}

	case UpdatingSelection:
		switch ev := e.(type) {
		case ReshapeActive:
			st.Current = geom.RealignAfterEdit(ev.Ring, st.Current)
			return st, true
		case ReshapeComplete:
			next := Selected{
				Selection:   geom.RealignAfterEdit(ev.Ring, st.Current),
				ModelOrigin: st.ModelOrigin,
			}
			if next.Selection == st.Snapshot {
				next.Export, next.ExportID = st.SnapshotExport, st.SnapshotExportID
			}
			return next, true
		case ReshapeCancel:
			return Selected{
				Selection:   st.Snapshot,
				ModelOrigin: st.ModelOrigin,
				Export:      st.SnapshotExport,
				ExportID:    st.SnapshotExportID,
			}, true
		}

	case UpdatingOrigin:
		switch ev := e.(type) {
		case OriginActive:
			p := ev.Point
			st.Current = &p
			return st, true
		case OriginComplete:
			p := ev.Point
			next := Selected{Selection: st.Selection, ModelOrigin: &p}
			if st.Snapshot != nil && *st.Snapshot == p {
				next.Export, next.ExportID = st.SnapshotExport, st.SnapshotExportID
			}
			return next, true
		case OriginCancel:
			return Selected{
				Selection:   st.Selection,
				ModelOrigin: st.Snapshot,
				Export:      st.SnapshotExport,
				ExportID:    st.SnapshotExportID,
			}, true
		}
	}
	return s, false
}

// Machine applies Transition to incoming events and projects each new
// state onto its Store. It is the only writer of the Store.
type Machine struct {
	mu    sync.Mutex
	state State
	store *Store
	log   *slog.Logger
}

// NewMachine creates a machine in the idle state writing to store.
func NewMachine(store *Store, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	m := &Machine{state: Idle{}, store: store, log: log.With("component", "selection")}
	store.write(m.state.project())
	return m
}

func (m *Machine) Store() *Store { return m.store }

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Matches reports whether the current state is one of names.
func (m *Machine) Matches(names ...StateName) bool {
	cur := m.State().Name()
	for _, n := range names {
		if n == cur {
			return true
		}
	}
	return false
}

// Dispatch feeds e to the machine. It reports whether e caused a
// transition; ignored events are not errors. The store has been updated
// by the time Dispatch returns. Store listeners run inside Dispatch and
// must not dispatch themselves.
func (m *Machine) Dispatch(e Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state
	next, ok := Transition(prev, e)
	if !ok {
		m.log.Debug("event ignored", "event", e.Kind(), "state", prev.Name())
		return false
	}
	m.state = next

	if r, isReset := e.(Reset); isReset {
		m.store.setScene(r.Scene)
	}
	m.store.write(next.project())
	if prev.Name() != next.Name() {
		m.log.Debug("transition", "event", e.Kind(), "from", prev.Name(), "to", next.Name())
	}
	return true
}
