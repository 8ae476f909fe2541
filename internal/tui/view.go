package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sceneaoi/internal/query"
	"sceneaoi/internal/selection"
)

type layout struct {
	originX, originY int
	mapW, mapH       int
	contentW         int
	contentH         int
}

// layout computes the map area; mouse handling and View must agree on it.
func (m Model) layout() layout {
	side := 0
	if m.showSidebar {
		side = sidebarWidth + 1
	}
	lay := layout{
		originX:  side,
		originY:  headerHeight,
		contentW: max(10, m.width),
		contentH: max(4, m.height-headerHeight-footerHeight),
	}
	lay.mapW = max(10, lay.contentW-side)
	lay.mapH = lay.contentH
	return lay
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	lay := m.layout()

	header := titleStyle.Render(" sceneaoi ─ area of interest ") + " " + m.stageLine()
	header = lipgloss.NewStyle().Width(lay.contentW).MaxHeight(1).Render(header)

	var mapView string
	switch {
	case m.showAttrs:
		colW := 0
		for _, c := range m.tbl.Columns() {
			colW += c.Width + 3
		}
		boxW := min(lay.mapW, max(32, colW))
		m.tbl.SetWidth(boxW - 4)
		m.tbl.SetHeight(min(lay.mapH-2, 20))
		mapView = lipgloss.Place(lay.mapW, lay.mapH, lipgloss.Center, lipgloss.Center, boxStyle.Width(boxW).Render(m.tbl.View()))
	case m.pasteMode:
		m.ta.SetWidth(lay.mapW)
		m.ta.SetHeight(min(lay.mapH, 12))
		mapView = lipgloss.NewStyle().Width(lay.mapW).Height(lay.mapH).Render(m.ta.View())
	default:
		mapView = lipgloss.NewStyle().Width(lay.mapW).Height(lay.mapH).Render(m.renderMap(lay.mapW, lay.mapH))
	}
	if m.popup != "" && !m.showAttrs {
		box := popupStyle.MaxWidth(min(60, max(24, lay.mapW-4))).Render(m.popup)
		mapView = lipgloss.Place(lay.mapW, lay.mapH, lipgloss.Center, lipgloss.Center, box)
	}

	body := mapView
	if m.showSidebar {
		sidebar := lipgloss.NewStyle().Width(sidebarWidth).Render(m.l.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", mapView)
	}

	coords := ""
	if m.hoverHasGeo {
		coords = dimStyle.Render("  " + fmtXY(m.hoverX, m.hoverY) + "  ")
	}
	top := lipgloss.JoinHorizontal(lipgloss.Bottom, dimStyle.Render(" "+m.status+" "), m.lookupLine())
	spacer := max(0, lay.contentW-lipgloss.Width(top)-lipgloss.Width(coords))
	top = top + strings.Repeat(" ", spacer) + coords
	footer := lipgloss.JoinVertical(lipgloss.Left, top, m.renderHelp())

	ui := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return appStyle.Width(lay.contentW).Height(m.height).Render(ui)
}

func (m Model) stageLine() string {
	store := m.wf.Store()
	parts := []string{"stage: " + store.WorkflowStage().String()}
	if sel, ok := store.Selection(); ok {
		parts = append(parts, fmt.Sprintf("aoi: %.0f m²", sel.Area()))
	}
	if store.ExportState() != selection.NotExported {
		parts = append(parts, "export: "+store.ExportState().String())
	}
	return dimStyle.Render(strings.Join(parts, "  "))
}

// lookupLine renders one tag per lookup: loading, stale, failed or ready.
func (m Model) lookupLine() string {
	var tags []string
	for _, st := range m.wf.Lookups().Statuses() {
		switch {
		case st.Status == query.StatusLoading:
			tags = append(tags, loadingStyle.Render(st.Name+"…"))
		case st.Status == query.StatusError:
			tags = append(tags, failedStyle.Render(st.Name+"✗"))
		case st.Stale:
			tags = append(tags, staleStyle.Render(st.Name+"~"))
		case st.HasResult:
			tags = append(tags, readyStyle.Render(st.Name+"✓"))
		}
	}
	if len(tags) == 0 {
		return ""
	}
	return " " + strings.Join(tags, " ")
}

// inspect summarises the selection and the latest lookup results.
func (m Model) inspect() string {
	store := m.wf.Store()
	sel, ok := store.Selection()
	if !ok {
		return "no selection"
	}
	lk := m.wf.Lookups()
	lines := []string{
		"aoi: " + truncate(sel.WKT(), 56),
		fmt.Sprintf("area: %.1f", sel.Area()),
		"wkid: " + fmt.Sprint(int(sel.Origin().SR)),
	}
	if fs := lk.Features.Snapshot(); fs.HasResult {
		lines = append(lines, fmt.Sprintf("features: %d%s", fs.Result.Count(), staleMark(fs.Stale)))
		if len(fs.Result.Failed) > 0 {
			lines = append(lines, "failed layers: "+strings.Join(fs.Result.Failed, ", "))
		}
	}
	if c := lk.Corners.Snapshot(); c.HasResult {
		lines = append(lines, fmt.Sprintf("ground z: min %.2f max %.2f mean %.2f%s", c.Result.Min, c.Result.Max, c.Result.Mean, staleMark(c.Stale)))
	}
	if o, ok := store.ModelOrigin(); ok {
		lines = append(lines, "model origin: "+o.String())
		if s := lk.Origin.Snapshot(); s.HasResult {
			lines = append(lines, fmt.Sprintf("draped z: %.2f%s", s.Result.Z, staleMark(s.Stale)))
		}
		if s := lk.Footprint.Snapshot(); s.HasResult && s.Result.Found() {
			f := s.Result.Feature
			lines = append(lines, fmt.Sprintf("footprint: %s/%s %q%s", f.LayerID, f.ID, f.Title(), staleMark(s.Stale)))
		}
	}
	return strings.Join(lines, "\n") + "\n\npress d to dismiss"
}

func staleMark(stale bool) string {
	if stale {
		return " (stale)"
	}
	return ""
}

func (m Model) renderHelp() string {
	if !m.helpVisible {
		return ""
	}
	keys := []string{
		"n new",
		"e reshape",
		"o origin",
		"x export",
		"r reload",
		"p paste",
		"a attrs",
		"i inspect",
		"1-9 layers",
		"l draw",
		"+/- zoom",
		"Tab scenes",
		"d dismiss",
		"h help",
		"q quit",
	}
	return dimStyle.Render("  " + strings.Join(keys, "  "))
}
