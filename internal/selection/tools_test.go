package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sceneaoi/internal/geom"
)

func ptr(pt geom.Point) *geom.Point { return &pt }

func TestCreateAdapterTwoClicks(t *testing.T) {
	r := NewRouter(nil)
	m := newMachine()
	feed := func(g Gesture) {
		if e, ok := r.Route(g); ok {
			m.Dispatch(e)
		}
	}

	feed(Gesture{Tool: ToolCreate, Phase: PhaseStart})
	// hover before the origin is placed is not a preview
	_, ok := r.Route(Gesture{Tool: ToolCreate, Phase: PhaseActive, Point: ptr(p(9, 9))})
	assert.False(t, ok)

	feed(Gesture{Tool: ToolCreate, Phase: PhaseComplete, Point: ptr(p(0, 0))})
	feed(Gesture{Tool: ToolCreate, Phase: PhaseActive, Point: ptr(p(3, 3))})
	feed(Gesture{Tool: ToolCreate, Phase: PhaseComplete, Point: ptr(p(4, 2))})

	sel, ok := m.Store().Selection()
	require.True(t, ok)
	assert.Equal(t, geom.MakeRectangle(p(0, 0), p(4, 2)), sel)
	assert.Equal(t, StateSelected, m.State().Name())
}

func TestCreateAdapterPolygonSource(t *testing.T) {
	a := &CreateAdapter{}
	a.Adapt(Gesture{Phase: PhaseStart})
	ring := geom.MakeRectangle(p(0, 0), p(5, 6))
	e, ok := a.Adapt(Gesture{Phase: PhaseComplete, Ring: ring[:]})
	require.True(t, ok)
	assert.Equal(t, CreateCommit{Point: p(5, 6)}, e)
}

func TestCreateAdapterCancel(t *testing.T) {
	a := &CreateAdapter{}
	_, ok := a.Adapt(Gesture{Phase: PhaseCancel})
	assert.False(t, ok)
	a.Adapt(Gesture{Phase: PhaseStart})
	e, ok := a.Adapt(Gesture{Phase: PhaseCancel})
	require.True(t, ok)
	assert.Equal(t, CreateCancel{}, e)
}

func TestReshapeAdapterDropsVertexInsertAndRemove(t *testing.T) {
	a := &ReshapeAdapter{}
	a.Adapt(Gesture{Phase: PhaseStart})
	ring := geom.MakeRectangle(p(0, 0), p(5, 5))

	for _, op := range []VertexOp{VertexAdd, VertexRemove} {
		_, ok := a.Adapt(Gesture{Phase: PhaseActive, Ring: ring[:], Edit: &EditInfo{Op: op, Index: 1}})
		assert.False(t, ok)
	}
	_, ok := a.Adapt(Gesture{Phase: PhaseActive, Ring: ring[:4]})
	assert.False(t, ok)

	e, ok := a.Adapt(Gesture{Phase: PhaseActive, Ring: ring[:], Edit: &EditInfo{Op: VertexMove, Index: 2}})
	require.True(t, ok)
	assert.Equal(t, ReshapeActive{Ring: ring}, e)

	e, ok = a.Adapt(Gesture{Phase: PhaseComplete, Ring: ring[:]})
	require.True(t, ok)
	assert.Equal(t, ReshapeComplete{Ring: ring}, e)

	_, ok = a.Adapt(Gesture{Phase: PhaseActive, Ring: ring[:]})
	assert.False(t, ok, "inactive after complete")
}

func TestOriginAdapter(t *testing.T) {
	a := &OriginAdapter{}
	_, ok := a.Adapt(Gesture{Phase: PhaseActive, Point: ptr(p(1, 1))})
	assert.False(t, ok)

	e, _ := a.Adapt(Gesture{Phase: PhaseStart})
	assert.Equal(t, OriginStart{}, e)
	e, _ = a.Adapt(Gesture{Phase: PhaseActive, Point: ptr(p(1, 1))})
	assert.Equal(t, OriginActive{Point: p(1, 1)}, e)
	e, _ = a.Adapt(Gesture{Phase: PhaseComplete, Point: ptr(p(2, 1))})
	assert.Equal(t, OriginComplete{Point: p(2, 1)}, e)
}

type fixedAdapter struct{ e Event }

func (f fixedAdapter) Adapt(Gesture) (Event, bool) { return f.e, true }

func TestRouterUse(t *testing.T) {
	r := NewRouter(nil)
	r.Use(ToolOrigin, fixedAdapter{e: OriginCancel{}})
	e, ok := r.Route(Gesture{Tool: ToolOrigin, Phase: PhaseActive})
	require.True(t, ok)
	assert.Equal(t, OriginCancel{}, e)
}
