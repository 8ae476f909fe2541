package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	out string
	err error
}

// gate holds each request until the test releases it.
type gate struct {
	mu      sync.Mutex
	pending map[int]chan reply
	started chan int
}

func newGate() *gate {
	return &gate{pending: make(map[int]chan reply), started: make(chan int, 16)}
}

func (g *gate) fn(ctx context.Context, in int) (string, error) {
	ch := make(chan reply, 1)
	g.mu.Lock()
	g.pending[in] = ch
	g.mu.Unlock()
	g.started <- in
	select {
	case r := <-ch:
		return r.out, r.err
	case <-ctx.Done():
		// ignore cancellation so the test controls resolution order
		r := <-ch
		return r.out, r.err
	}
}

func (g *gate) release(in int, out string, err error) {
	g.mu.Lock()
	ch := g.pending[in]
	g.mu.Unlock()
	ch <- reply{out: out, err: err}
}

func (g *gate) awaitStart(t *testing.T, want int) {
	t.Helper()
	select {
	case got := <-g.started:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("request %d never started", want)
	}
}

func TestSupersededResultDiscarded(t *testing.T) {
	for _, order := range [][2]int{{1, 2}, {2, 1}} {
		g := newGate()
		c := New("test", g.fn, nil)
		c.Update(1)
		g.awaitStart(t, 1)
		c.Update(2)
		g.awaitStart(t, 2)

		for _, in := range order {
			g.release(in, map[int]string{1: "A", 2: "B"}[in], nil)
		}
		c.Wait()

		snap := c.Snapshot()
		assert.Equal(t, StatusSuccess, snap.Status, "order %v", order)
		assert.Equal(t, "B", snap.Result, "order %v", order)
		assert.False(t, snap.Stale)
	}
}

func TestSupersededErrorDiscarded(t *testing.T) {
	g := newGate()
	c := New("test", g.fn, nil)
	c.Update(1)
	g.awaitStart(t, 1)
	c.Update(2)
	g.awaitStart(t, 2)
	g.release(2, "B", nil)
	g.release(1, "", errors.New("boom"))
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.NoError(t, snap.Err)
	assert.Equal(t, "B", snap.Result)
}

func TestFailureKeepsLastResultStale(t *testing.T) {
	g := newGate()
	c := New("test", g.fn, nil)
	c.Update(1)
	g.awaitStart(t, 1)
	g.release(1, "A", nil)
	c.Wait()

	c.Update(2)
	g.awaitStart(t, 2)
	loading := c.Snapshot()
	assert.Equal(t, StatusLoading, loading.Status)
	assert.True(t, loading.Stale)
	assert.Equal(t, "A", loading.Result)

	g.release(2, "", errors.New("service down"))
	c.Wait()
	snap := c.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.EqualError(t, snap.Err, "service down")
	assert.True(t, snap.HasResult)
	assert.Equal(t, "A", snap.Result)
	assert.True(t, snap.Stale)
}

func TestAbortIsSwallowed(t *testing.T) {
	c := New("test", func(ctx context.Context, in int) (string, error) {
		return "", ErrAborted
	}, nil)
	c.Update(1)
	c.Wait()
	snap := c.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.NoError(t, snap.Err)
}

func TestIsAbort(t *testing.T) {
	assert.True(t, IsAbort(context.Canceled))
	assert.True(t, IsAbort(ErrAborted))
	assert.True(t, IsAbort(errors.Join(errors.New("layer"), context.Canceled)))
	assert.False(t, IsAbort(context.DeadlineExceeded))
	assert.False(t, IsAbort(errors.New("boom")))
}

func TestEqualInputIgnored(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	c := New("test", func(ctx context.Context, in int) (int, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return in * 2, nil
	}, nil)
	c.Update(3)
	c.Update(3)
	c.Wait()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 6, c.Snapshot().Result)

	c.Refresh()
	c.Wait()
	assert.Equal(t, 2, calls)
}

func TestDisposeCancelsInFlight(t *testing.T) {
	cancelled := make(chan struct{})
	c := New("test", func(ctx context.Context, in int) (int, error) {
		<-ctx.Done()
		close(cancelled)
		return 0, ctx.Err()
	}, nil)
	changes := 0
	c.OnChange(func(Snapshot[int, int]) { changes++ })
	c.Update(1)
	c.Dispose()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("request not cancelled")
	}
	c.Wait()
	assert.Equal(t, 1, changes, "only the loading notification")

	c.Update(2)
	c.Wait()
	assert.Equal(t, 1, c.Snapshot().Input)
}

func TestSupersedingCancelsContext(t *testing.T) {
	cancelled := make(chan int, 1)
	c := New("test", func(ctx context.Context, in int) (int, error) {
		if in == 2 {
			return 2, nil
		}
		<-ctx.Done()
		cancelled <- in
		return 0, ctx.Err()
	}, nil)
	c.Update(1)
	c.Update(2)
	c.Wait()
	assert.Equal(t, 1, <-cancelled)
	assert.Equal(t, 2, c.Snapshot().Result)
}

func TestClear(t *testing.T) {
	c := New("test", func(ctx context.Context, in int) (int, error) { return in, nil }, nil)
	c.Update(5)
	c.Wait()
	c.Clear()
	snap := c.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.False(t, snap.HasInput)
	assert.False(t, snap.HasResult)
	assert.False(t, snap.Stale)
}

func TestOnChangeSequence(t *testing.T) {
	c := New("test", func(ctx context.Context, in int) (int, error) { return in, nil }, nil)
	var mu sync.Mutex
	var seen []Status
	off := c.OnChange(func(s Snapshot[int, int]) {
		mu.Lock()
		seen = append(seen, s.Status)
		mu.Unlock()
	})
	c.Update(1)
	c.Wait()
	off()
	c.Update(2)
	c.Wait()
	assert.Equal(t, []Status{StatusLoading, StatusSuccess}, seen)
}
