// Package selection holds the area-of-interest workflow: the observable
// Store, the State/Event protocol and the gesture adapters feeding it.
package selection

import (
	"sync"

	"sceneaoi/internal/geom"
)

// EditingState governs which gestures are currently legal.
type EditingState int

const (
	EditingIdle EditingState = iota
	EditingCreating
	EditingSelection
	EditingOrigin
)

func (e EditingState) String() string {
	switch e {
	case EditingCreating:
		return "creating"
	case EditingSelection:
		return "updating-selection"
	case EditingOrigin:
		return "updating-origin"
	default:
		return "idle"
	}
}

type ExportState int

const (
	NotExported ExportState = iota
	Exporting
	Exported
)

func (e ExportState) String() string {
	switch e {
	case Exporting:
		return "exporting"
	case Exported:
		return "exported"
	default:
		return "not-exported"
	}
}

// WorkflowStage is a coarse label for UI sequencing, derived from the store.
type WorkflowStage int

const (
	StageNotStarted WorkflowStage = iota
	StagePlacingOrigin
	StagePlacingTerminal
	StageConfirming
	StageUpdatingOrigin
	StageDownloading
	StageDone
)

func (s WorkflowStage) String() string {
	return [...]string{
		"not-started",
		"placing-origin",
		"placing-terminal",
		"confirming",
		"updating-origin",
		"downloading",
		"done",
	}[s]
}

// Topic identifies one observable store field.
type Topic int

const (
	TopicSelection Topic = iota
	TopicModelOrigin
	TopicEditingState
	TopicExportState
	TopicScene
)

// Listener is called after a topic's value changed.
type Listener func(topic Topic)

// Store is the canonical AOI state of one workflow. Only the Machine in
// this package writes to it; everyone else reads through getters or
// Snapshot and subscribes with On.
type Store struct {
	mu sync.RWMutex

	sceneID      string
	editingState EditingState
	selection    *geom.Rectangle
	modelOrigin  *geom.Point
	exportState  ExportState
	exportID     string

	nextID    int
	listeners map[Topic]map[int]Listener
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{listeners: make(map[Topic]map[int]Listener)}
}

// On registers a listener for topic and returns a function removing it.
func (s *Store) On(topic Topic, l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners[topic] == nil {
		s.listeners[topic] = make(map[int]Listener)
	}
	id := s.nextID
	s.nextID++
	s.listeners[topic][id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners[topic], id)
	}
}

func (s *Store) emit(topics []Topic) {
	for _, t := range topics {
		s.mu.RLock()
		ls := make([]Listener, 0, len(s.listeners[t]))
		for _, l := range s.listeners[t] {
			ls = append(ls, l)
		}
		s.mu.RUnlock()
		for _, l := range ls {
			l(t)
		}
	}
}

func (s *Store) SceneID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sceneID
}

func (s *Store) EditingState() EditingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editingState
}

func (s *Store) ExportState() ExportState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exportState
}

// ExportID returns the id of the current or last completed export run.
func (s *Store) ExportID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exportID
}

// Selection returns the current rectangle, if any.
func (s *Store) Selection() (geom.Rectangle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return geom.Rectangle{}, false
	}
	return *s.selection, true
}

// ModelOrigin returns the user-chosen reference point, if any.
func (s *Store) ModelOrigin() (geom.Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.modelOrigin == nil {
		return geom.Point{}, false
	}
	return *s.modelOrigin, true
}

// SelectionOrigin is the rectangle's oo corner.
func (s *Store) SelectionOrigin() (geom.Point, bool) {
	r, ok := s.Selection()
	return r.Origin(), ok
}

// SelectionTerminal is the rectangle's tt corner.
func (s *Store) SelectionTerminal() (geom.Point, bool) {
	r, ok := s.Selection()
	return r.Terminal(), ok
}

// WorkflowStage derives the stage from selection, editing and export state.
func (s *Store) WorkflowStage() WorkflowStage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deriveStage(s.selection != nil, s.editingState, s.exportState)
}

func deriveStage(hasSelection bool, editing EditingState, export ExportState) WorkflowStage {
	if !hasSelection {
		if editing == EditingCreating {
			return StagePlacingOrigin
		}
		return StageNotStarted
	}
	switch editing {
	case EditingCreating:
		return StagePlacingTerminal
	case EditingSelection:
		return StageConfirming
	case EditingOrigin:
		return StageUpdatingOrigin
	}
	switch export {
	case Exporting:
		return StageDownloading
	case Exported:
		return StageDone
	}
	return StageConfirming
}

// Snapshot is a consistent copy of the store for readers.
type Snapshot struct {
	SceneID      string          `json:"scene"`
	EditingState string          `json:"editingState"`
	ExportState  string          `json:"exportState"`
	ExportID     string          `json:"exportId,omitempty"`
	Stage        string          `json:"workflowStage"`
	Selection    *geom.Rectangle `json:"selection,omitempty"`
	Origin       *geom.Point     `json:"selectionOrigin,omitempty"`
	Terminal     *geom.Point     `json:"selectionTerminal,omitempty"`
	ModelOrigin  *geom.Point     `json:"modelOrigin,omitempty"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		SceneID:      s.sceneID,
		EditingState: s.editingState.String(),
		ExportState:  s.exportState.String(),
		ExportID:     s.exportID,
		Stage:        deriveStage(s.selection != nil, s.editingState, s.exportState).String(),
	}
	if s.selection != nil {
		r := *s.selection
		o, t := r.Origin(), r.Terminal()
		snap.Selection, snap.Origin, snap.Terminal = &r, &o, &t
	}
	if s.modelOrigin != nil {
		p := *s.modelOrigin
		snap.ModelOrigin = &p
	}
	return snap
}

// values is the projection of a machine state onto the store's primary fields.
type values struct {
	editing     EditingState
	selection   *geom.Rectangle
	modelOrigin *geom.Point
	export      ExportState
	exportID    string
}

// write replaces the primary fields and notifies listeners of the topics
// whose values actually changed.
func (s *Store) write(v values) {
	s.mu.Lock()
	var changed []Topic
	if !equalRect(s.selection, v.selection) {
		s.selection = copyRect(v.selection)
		changed = append(changed, TopicSelection)
	}
	if !equalPoint(s.modelOrigin, v.modelOrigin) {
		s.modelOrigin = copyPoint(v.modelOrigin)
		changed = append(changed, TopicModelOrigin)
	}
	if s.editingState != v.editing {
		s.editingState = v.editing
		changed = append(changed, TopicEditingState)
	}
	if s.exportState != v.export {
		s.exportState = v.export
		changed = append(changed, TopicExportState)
	}
	s.exportID = v.exportID
	s.mu.Unlock()
	s.emit(changed)
}

func (s *Store) setScene(id string) {
	s.mu.Lock()
	if s.sceneID == id {
		s.mu.Unlock()
		return
	}
	s.sceneID = id
	s.mu.Unlock()
	s.emit([]Topic{TopicScene})
}

func equalRect(a, b *geom.Rectangle) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalPoint(a, b *geom.Point) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyRect(r *geom.Rectangle) *geom.Rectangle {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func copyPoint(p *geom.Point) *geom.Point {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
