package tui

import (
	"encoding/json"
	"fmt"
	"sort"

	table "github.com/charmbracelet/bubbles/table"

	"sceneaoi/internal/scene"
)

const maxColW = 24

// refreshAttrs rebuilds the AOI feature table from the latest feature lookup.
func (m *Model) refreshAttrs() {
	snap := m.wf.Lookups().Features.Snapshot()
	if !snap.HasResult || snap.Result.Count() == 0 {
		m.showAttrs = false
		m.status = "no features in the AOI"
		return
	}
	cols, rows := buildAttributes(snap.Result.All())
	m.attrCols, m.attrRows = cols, nil

	tcols := make([]table.Column, 0, len(cols)+1)
	tcols = append(tcols, table.Column{Title: "#", Width: 4})
	for _, c := range cols {
		tcols = append(tcols, table.Column{Title: c, Width: min(len(c)+2, maxColW)})
	}
	for i, r := range rows {
		cells := make([]string, len(tcols))
		cells[0] = fmt.Sprintf("%d", i+1)
		copy(cells[1:], r)
		m.attrRows = append(m.attrRows, table.Row(cells))
	}
	// clear rows first so columns and rows never disagree during SetColumns
	m.tbl.SetRows(nil)
	m.tbl.SetColumns(tcols)
	m.tbl.SetRows(m.attrRows)
	if snap.Stale {
		m.status = "feature table is stale"
	}
}

// buildAttributes unions the property keys of fs after the fixed layer and
// id columns. Keys are sorted for a stable layout.
func buildAttributes(fs []*scene.Feature) ([]string, [][]string) {
	seen := map[string]bool{}
	var keys []string
	for _, f := range fs {
		for k := range f.Properties {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	cols := append([]string{"layer", "id", "area"}, keys...)

	rows := make([][]string, 0, len(fs))
	for _, f := range fs {
		row := []string{f.LayerID, f.ID, ""}
		if a := f.Area(); a > 0 {
			row[2] = fmt.Sprintf("%.1f", a)
		}
		for _, k := range keys {
			row = append(row, propString(f.Properties[k]))
		}
		rows = append(rows, row)
	}
	return cols, rows
}

func propString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		bs, _ := json.Marshal(t)
		return string(bs)
	}
}
