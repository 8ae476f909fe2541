package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	list "github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"sceneaoi/internal/export"
	"sceneaoi/internal/geom"
	"sceneaoi/internal/query"
	"sceneaoi/internal/selection"
)

const exportTimeout = 2 * time.Minute

type exportDoneMsg struct {
	id  string
	rec export.Record
	err error
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case lookupMsg:
		m.lookupChanged()
		return m, m.waitForLookup()

	case exportDoneMsg:
		current := m.wf.EndExport(msg.id, msg.err)
		switch {
		case msg.err != nil:
			m.popup = "export failed: " + msg.err.Error()
			m.status = "export failed"
		case !current:
			m.status = fmt.Sprintf("selection changed, earlier export written to %s", msg.rec.Path)
		default:
			m.status = fmt.Sprintf("exported %d features to %s", msg.rec.FeatureCount, msg.rec.Path)
		}
		return m, nil

	case sceneChangedMsg:
		if err := m.wf.Reload(); err != nil {
			m.popup = "reload: " + err.Error()
			return m, nil
		}
		m.fitScene()
		m.status = "scene changed on disk, selection reset"
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil
	}
	if m.showSidebar {
		var cmd tea.Cmd
		m.l, cmd = m.l.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) resize() {
	lay := m.layout()
	m.mapW, m.mapH = lay.mapW, lay.mapH
	if m.showSidebar {
		m.l.SetSize(sidebarWidth-2, lay.contentH-2)
	}
}

// lookupChanged refreshes views that show lookup results and raises a
// popup for every failure not yet reported.
func (m *Model) lookupChanged() {
	if m.showAttrs {
		m.refreshAttrs()
	}
	if m.reported == nil {
		m.reported = map[string]string{}
	}
	var msgs []string
	for _, st := range m.wf.Lookups().Statuses() {
		if st.Status != query.StatusError || st.Err == nil {
			delete(m.reported, st.Name)
			continue
		}
		if m.reported[st.Name] == st.Err.Error() {
			continue
		}
		m.reported[st.Name] = st.Err.Error()
		msgs = append(msgs, fmt.Sprintf("%s lookup failed: %v", st.Name, st.Err))
	}
	if len(msgs) > 0 {
		m.popup = strings.Join(msgs, "\n") + "\n\npress d to dismiss"
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showSidebar && m.l.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.l, cmd = m.l.Update(msg)
		return m, cmd
	}
	if m.pasteMode {
		switch msg.String() {
		case "esc":
			m.pasteMode = false
			m.ta.Blur()
			return m, nil
		case "enter":
			w := strings.TrimSpace(m.ta.Value())
			if w == "" {
				m.status = "paste: empty"
				return m, nil
			}
			if err := m.wf.SelectWKT(w); err != nil {
				m.status = "wkt error: " + err.Error()
				return m, nil
			}
			sel, _ := m.wf.Store().Selection()
			m.status = "AOI set from WKT: " + sel.WKT()
			m.pasteMode = false
			m.ta.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.ta, cmd = m.ta.Update(msg)
		return m, cmd
	}

	machine := m.wf.Machine()
	if machine.Matches(selection.StateUpdatingSelection) {
		if m.reshapeKey(msg.String()) {
			return m, nil
		}
	}

	switch key := msg.String(); key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc":
		m.cancelTool()
	case "n":
		m.gesture(selection.ToolCreate, selection.PhaseStart, nil)
		m.status = "new selection: click the origin corner"
	case "e":
		if _, ok := m.gesture(selection.ToolReshape, selection.PhaseStart, nil); ok {
			m.corner = geom.CornerTerminal
			m.status = "reshape: c cycles corner, arrows move, enter completes, esc cancels"
		}
	case "o":
		if _, ok := m.gesture(selection.ToolOrigin, selection.PhaseStart, nil); ok {
			m.status = "model origin: click to place, esc cancels"
		}
	case "x":
		req, err := m.wf.BeginExport()
		if err != nil {
			m.status = "export: " + err.Error()
			return m, nil
		}
		m.status = "exporting…"
		return m, m.runExport(req)
	case "r":
		if err := m.wf.Reload(); err != nil {
			m.status = "reload: " + err.Error()
			break
		}
		m.fitScene()
		m.status = "scene reloaded"
	case "d":
		m.popup = ""
	case "+", "=":
		if m.zoom < 64 {
			m.zoom *= 1.2
			m.status = fmt.Sprintf("zoom: %.2fx", m.zoom)
		}
	case "-", "_":
		if m.zoom > 0.05 {
			m.zoom /= 1.2
			m.status = fmt.Sprintf("zoom: %.2fx", m.zoom)
		}
	case "tab":
		m.showSidebar = !m.showSidebar
		if m.showSidebar {
			m.refreshDir()
		}
		m.resize()
	case "p":
		m.pasteMode = true
		m.ta.SetValue("")
		m.ta.Focus()
		m.status = "paste mode"
	case "h":
		m.helpVisible = !m.helpVisible
	case "a":
		m.showAttrs = !m.showAttrs
		if m.showAttrs {
			m.refreshAttrs()
		}
	case "i":
		m.popup = m.inspect()
	case "l":
		m.showFeatures = !m.showFeatures
		m.status = fmt.Sprintf("draw features: %v", m.showFeatures)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		m.toggleLayer(key)
	case "enter":
		if m.showSidebar {
			if it, ok := m.l.SelectedItem().(dirItem); ok {
				m.openItem(it)
			}
			return m, nil
		}
		if machine.Matches(selection.StateUpdatingOrigin) {
			if o, ok := m.wf.Store().ModelOrigin(); ok {
				m.gesture(selection.ToolOrigin, selection.PhaseComplete, &o)
			}
		}
	case "up", "down", "left", "right":
		if m.showSidebar {
			var cmd tea.Cmd
			m.l, cmd = m.l.Update(msg)
			return m, cmd
		}
		if m.showAttrs {
			var cmd tea.Cmd
			m.tbl, cmd = m.tbl.Update(msg)
			return m, cmd
		}
		dx, dy := arrow(key)
		m.offsetX -= 2 * dx
		m.offsetY += dy
	}
	return m, nil
}

// arrow returns the unit step of an arrow key, with y growing north.
func arrow(key string) (int, int) {
	switch key {
	case "up":
		return 0, 1
	case "down":
		return 0, -1
	case "left":
		return -1, 0
	case "right":
		return 1, 0
	}
	return 0, 0
}

// reshapeKey handles the keys of an active reshape and reports whether it
// consumed the key.
func (m *Model) reshapeKey(key string) bool {
	sel, ok := m.wf.Store().Selection()
	if !ok {
		return false
	}
	switch key {
	case "c":
		m.corner = (m.corner + 1) % 4
		m.status = fmt.Sprintf("reshape: corner %d", m.corner)
	case "up", "down", "left", "right":
		dx, dy := arrow(key)
		sx, sy := m.cellStep()
		c := sel[m.corner]
		m.moveCorner(sel, geom.NewPoint(c.X+float64(dx)*sx, c.Y+float64(dy)*sy, c.Z, c.SR))
	case "enter":
		m.reshape(selection.PhaseComplete, sel)
		m.status = "reshape complete"
	case "esc":
		m.gesture(selection.ToolReshape, selection.PhaseCancel, nil)
		m.status = "reshape cancelled"
	default:
		return false
	}
	return true
}

func (m *Model) moveCorner(sel geom.Rectangle, p geom.Point) {
	m.reshape(selection.PhaseActive, sel.MoveCorner(m.corner, p))
}

func (m *Model) reshape(phase selection.Phase, ring geom.Rectangle) {
	m.wf.Gesture(selection.Gesture{
		Tool:  selection.ToolReshape,
		Phase: phase,
		Ring:  ring[:],
		Edit:  &selection.EditInfo{Op: selection.VertexMove, Index: m.corner},
	})
}

func (m *Model) gesture(tool selection.Tool, phase selection.Phase, p *geom.Point) (selection.Event, bool) {
	return m.wf.Gesture(selection.Gesture{Tool: tool, Phase: phase, Point: p})
}

// cancelTool cancels whichever tool is active, or closes the topmost overlay.
func (m *Model) cancelTool() {
	machine := m.wf.Machine()
	switch {
	case machine.Matches(selection.StatePlacingOrigin, selection.StatePlacingTerminal):
		m.gesture(selection.ToolCreate, selection.PhaseCancel, nil)
		m.status = "selection cancelled"
	case machine.Matches(selection.StateUpdatingOrigin):
		m.gesture(selection.ToolOrigin, selection.PhaseCancel, nil)
		m.status = "model origin cancelled"
	case m.popup != "":
		m.popup = ""
	case m.showAttrs:
		m.showAttrs = false
	case m.showSidebar:
		m.showSidebar = false
		m.resize()
	}
}

func (m *Model) toggleLayer(key string) {
	sc := m.wf.Scene()
	n, _ := strconv.Atoi(key)
	if sc == nil || n < 1 || n > len(sc.Layers) {
		m.status = "no layer " + key
		return
	}
	id := sc.Layers[n-1].ID()
	lk := m.wf.Lookups()
	visible := !lk.LayerVisible(id)
	lk.SetLayerVisible(id, visible)
	m.status = fmt.Sprintf("layer %s queried: %v", id, visible)
}

func (m Model) runExport(req export.Request) tea.Cmd {
	wf := m.wf
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()
		rec, err := wf.RunExport(ctx, req)
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("export timed out after %s", exportTimeout)
		}
		return exportDoneMsg{id: req.ID, rec: rec, err: err}
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	lay := m.layout()
	cx, cy := msg.X-lay.originX, msg.Y-lay.originY
	if cx < 0 || cx >= lay.mapW || cy < 0 || cy >= lay.mapH || m.showAttrs || m.pasteMode {
		m.hovering, m.hoverHasGeo = false, false
		return
	}
	m.hovering = true
	m.hoverCellX, m.hoverCellY = cx, cy
	x, y, ok := m.cellToWorld(cx, cy, lay.mapW, lay.mapH)
	m.hoverHasGeo = ok
	sc := m.wf.Scene()
	if !ok || sc == nil {
		return
	}
	m.hoverX, m.hoverY = x, y
	p := sc.Point(x, y)

	press := msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft
	drag := msg.Action == tea.MouseActionMotion && msg.Button == tea.MouseButtonLeft
	motion := msg.Action == tea.MouseActionMotion

	machine := m.wf.Machine()
	switch {
	case machine.Matches(selection.StatePlacingOrigin, selection.StatePlacingTerminal):
		if press {
			m.gesture(selection.ToolCreate, selection.PhaseComplete, &p)
		} else if motion {
			m.gesture(selection.ToolCreate, selection.PhaseActive, &p)
		}
	case machine.Matches(selection.StateUpdatingOrigin):
		if press {
			m.gesture(selection.ToolOrigin, selection.PhaseComplete, &p)
			m.status = "model origin placed at " + fmtXY(x, y)
		} else if motion {
			m.gesture(selection.ToolOrigin, selection.PhaseActive, &p)
		}
	case machine.Matches(selection.StateUpdatingSelection):
		sel, ok := m.wf.Store().Selection()
		if !ok {
			return
		}
		if press {
			m.corner = nearestCorner(sel, x, y)
		}
		if press || drag {
			m.moveCorner(sel, p.WithZ(sel[m.corner].Z))
		}
	}
}

func nearestCorner(r geom.Rectangle, x, y float64) int {
	best, bestD := 0, -1.0
	for i, c := range r.Corners() {
		d := (c.X-x)*(c.X-x) + (c.Y-y)*(c.Y-y)
		if bestD < 0 || d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
