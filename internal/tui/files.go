package tui

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	list "github.com/charmbracelet/bubbles/list"

	"sceneaoi/internal/geom"
	"sceneaoi/internal/scene"
)

const debounce = 300 * time.Millisecond

type dirItem struct {
	title, desc string
	path        string
	isScene     bool
}

func (d dirItem) Title() string       { return d.title }
func (d dirItem) Description() string { return d.desc }
func (d dirItem) FilterValue() string { return d.title }

// isSceneDir reports whether dir holds at least one layer or a ground grid.
func isSceneDir(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".geojson") || e.Name() == scene.GroundFile {
			return true
		}
	}
	return false
}

func (m *Model) refreshDir() {
	entries, err := os.ReadDir(m.cwd)
	if err != nil {
		m.status = "read dir error: " + err.Error()
		return
	}
	items := []list.Item{dirItem{title: "..", desc: "up", path: filepath.Dir(m.cwd)}}
	if isSceneDir(m.cwd) {
		items = append(items, dirItem{title: ".", desc: "scene", path: m.cwd, isScene: true})
	}
	var dirs []list.Item
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p := filepath.Join(m.cwd, e.Name())
		it := dirItem{title: e.Name() + "/", desc: "dir", path: p}
		if isSceneDir(p) {
			it.desc, it.isScene = "scene", true
		}
		dirs = append(dirs, it)
	}
	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].(dirItem).title < dirs[j].(dirItem).title })
	m.items = append(items, dirs...)
	m.l.SetItems(m.items)
}

// openItem enters a plain directory or loads a scene.
func (m *Model) openItem(it dirItem) {
	if !it.isScene || it.title == ".." {
		m.cwd = it.path
		m.refreshDir()
		return
	}
	m.loadScene(it.path)
}

func (m *Model) loadScene(dir string) {
	sc, err := m.wf.LoadScene(dir, m.sr)
	if err != nil {
		m.popup = "load scene: " + err.Error()
		return
	}
	m.fitScene()
	m.showAttrs = false
	m.status = "scene: " + sc.ID
}

// fitScene resets the viewport to the whole scene, padded by 5%.
func (m *Model) fitScene() {
	m.zoom, m.offsetX, m.offsetY = 1.0, 0, 0
	m.sceneBB = geom.BBox{}
	sc := m.wf.Scene()
	if sc == nil {
		return
	}
	b, ok := sc.Bound()
	if !ok {
		return
	}
	dx, dy := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	pad := 0.05 * max(dx, dy, 1)
	m.sceneBB = geom.BBoxFromBound(b.Pad(pad))
}
