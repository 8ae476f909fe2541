package tui

import (
	"log/slog"
	"os"

	list "github.com/charmbracelet/bubbles/list"
	table "github.com/charmbracelet/bubbles/table"
	textarea "github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"sceneaoi/internal/geom"
	"sceneaoi/internal/workflow"
)

const (
	sidebarWidth = 28
	headerHeight = 1
	footerHeight = 2
)

type Model struct {
	width  int
	height int

	showSidebar bool
	helpVisible bool

	zoom    float64
	offsetX int
	offsetY int

	status string

	// Scene browser
	cwd     string
	l       list.Model
	items   []list.Item
	sr      geom.SpatialReference
	sceneBB geom.BBox

	wf      *workflow.Workflow
	log     *slog.Logger
	changes chan string

	// last rendered map size
	mapW int
	mapH int

	// WKT paste box
	pasteMode bool
	ta        textarea.Model

	showFeatures bool

	// reshape handle being dragged with the keyboard
	corner int

	// dismissible popup (inspect output, lookup failures)
	popup    string
	reported map[string]string

	// hover state
	hovering    bool
	hoverCellX  int
	hoverCellY  int
	hoverHasGeo bool
	hoverX      float64
	hoverY      float64

	// AOI feature table
	showAttrs bool
	tbl       table.Model
	attrCols  []string
	attrRows  []table.Row
}

// New creates the model around wf. Scenes are browsed relative to the
// working directory and opened in sr.
func New(wf *workflow.Workflow, sr geom.SpatialReference, log *slog.Logger) Model {
	if log == nil {
		log = slog.Default()
	}
	m := Model{
		helpVisible:  true,
		zoom:         1.0,
		status:       "sceneaoi ready",
		sr:           sr,
		wf:           wf,
		log:          log.With("component", "tui"),
		changes:      make(chan string, 1),
		showFeatures: true,
		corner:       geom.CornerTerminal,
	}
	m.cwd, _ = os.Getwd()
	d := list.NewDefaultDelegate()
	d.ShowDescription = false
	m.l = list.New(nil, d, 0, 0)
	m.l.Title = "Scenes"
	m.l.SetShowHelp(false)
	m.l.SetShowStatusBar(false)
	m.l.SetFilteringEnabled(true)
	m.ta = textarea.New()
	m.ta.Placeholder = "Paste WKT here (POINT, MULTIPOINT, LINESTRING, POLYGON). Its bounds become the AOI. Enter to apply; Esc to cancel."
	m.ta.CharLimit = 0
	m.ta.SetWidth(50)
	m.ta.SetHeight(6)
	m.tbl = table.New(table.WithFocused(true))
	m.tbl.SetHeight(12)

	ch := m.changes
	wf.Lookups().OnChange(func(name string) {
		select {
		case ch <- name:
		default:
		}
	})
	m.refreshDir()
	if sc := wf.Scene(); sc != nil && (len(sc.Layers) > 0 || sc.Ground != nil) {
		m.fitScene()
		m.status = "scene: " + sc.ID
	} else {
		m.showSidebar = true
		m.status = "open a scene directory"
	}
	return m
}

func (m Model) Init() tea.Cmd { return m.waitForLookup() }

// lookupMsg reports that a lookup changed status.
type lookupMsg struct{ name string }

// sceneChangedMsg is sent by the scene watcher.
type sceneChangedMsg struct{}

// SceneChanged is the message to send when a scene file changed on disk.
func SceneChanged() tea.Msg { return sceneChangedMsg{} }

func (m Model) waitForLookup() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		return lookupMsg{name: <-ch}
	}
}

// Run starts the interactive program and blocks until it quits.
func Run(wf *workflow.Workflow, sr geom.SpatialReference, log *slog.Logger, watch bool) error {
	if log == nil {
		log = slog.Default()
	}
	p := tea.NewProgram(New(wf, sr, log), tea.WithAltScreen(), tea.WithMouseAllMotion())
	if watch && wf.Scene() != nil {
		if err := wf.Watch(debounce, func() { p.Send(sceneChangedMsg{}) }); err != nil {
			log.Warn("scene watch disabled", "err", err)
		}
	}
	_, err := p.Run()
	return err
}
