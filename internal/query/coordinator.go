// Package query coordinates asynchronous lookups that depend on a changing
// input: every new input cancels the request in flight, and only the result
// of the latest request is ever applied.
package query

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrAborted is returned by query functions that gave up because their
// request was superseded or disposed.
var ErrAborted = errors.New("query aborted")

// IsAbort reports whether err only signals cancellation.
func IsAbort(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	return [...]string{"idle", "loading", "success", "error"}[s]
}

// Func runs one request. It must return promptly once ctx is done.
type Func[In, Out any] func(ctx context.Context, in In) (Out, error)

// Snapshot is a consistent view of a coordinator.
type Snapshot[In, Out any] struct {
	Status    Status
	Input     In
	HasInput  bool
	Result    Out
	HasResult bool
	Err       error
	// Stale is set when Result was computed for another input than Input,
	// either because a refresh is pending or because it failed.
	Stale bool
}

type request[In any] struct {
	id     uuid.UUID
	input  In
	cancel context.CancelFunc
}

// Coordinator re-runs fn whenever its input changes. A failed request
// keeps the last good result and flags it stale.
type Coordinator[In comparable, Out any] struct {
	name string
	fn   Func[In, Out]
	log  *slog.Logger

	mu          sync.Mutex
	input       In
	hasInput    bool
	status      Status
	result      Out
	resultInput In
	hasResult   bool
	err         error
	current     *request[In]
	disposed    bool
	nextID      int
	listeners   map[int]func(Snapshot[In, Out])

	wg sync.WaitGroup
}

// New creates an idle coordinator.
func New[In comparable, Out any](name string, fn Func[In, Out], log *slog.Logger) *Coordinator[In, Out] {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator[In, Out]{
		name:      name,
		fn:        fn,
		log:       log.With("component", "query", "coordinator", name),
		listeners: make(map[int]func(Snapshot[In, Out])),
	}
}

func (c *Coordinator[In, Out]) Name() string { return c.name }

// OnChange registers fn to receive every status change. Listeners run on
// the goroutine that caused the change and must not block.
func (c *Coordinator[In, Out]) OnChange(fn func(Snapshot[In, Out])) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return func() {}
	}
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Update sets the input and starts a request for it. An input equal to the
// current one is ignored.
func (c *Coordinator[In, Out]) Update(in In) {
	c.mu.Lock()
	if c.disposed || (c.hasInput && c.input == in) {
		c.mu.Unlock()
		return
	}
	c.input, c.hasInput = in, true
	c.start()
}

// Refresh re-runs the request for the current input, for example after the
// collaborators behind fn changed.
func (c *Coordinator[In, Out]) Refresh() {
	c.mu.Lock()
	if c.disposed || !c.hasInput {
		c.mu.Unlock()
		return
	}
	c.start()
}

// start issues a request for c.input. Called with c.mu held; unlocks it.
func (c *Coordinator[In, Out]) start() {
	if c.current != nil {
		c.current.cancel()
		c.log.Debug("request superseded", "request", c.current.id)
	}
	ctx, cancel := context.WithCancel(context.Background())
	req := &request[In]{id: uuid.New(), input: c.input, cancel: cancel}
	c.current = req
	c.status = StatusLoading
	c.err = nil
	snap, ls := c.snapshotLocked(), c.listenersLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	c.log.Debug("request started", "request", req.id)
	notify(ls, snap)

	go func() {
		defer c.wg.Done()
		out, err := c.fn(ctx, req.input)
		c.settle(req, out, err)
	}()
}

func (c *Coordinator[In, Out]) settle(req *request[In], out Out, err error) {
	c.mu.Lock()
	if c.current != req {
		c.mu.Unlock()
		c.log.Debug("result discarded", "request", req.id)
		return
	}
	c.current = nil
	req.cancel()
	switch {
	case err == nil:
		c.result, c.resultInput, c.hasResult = out, req.input, true
		c.status = StatusSuccess
	case IsAbort(err):
		c.log.Debug("request aborted", "request", req.id)
		c.status = StatusIdle
		if c.hasResult {
			c.status = StatusSuccess
		}
	default:
		c.log.Error("request failed", "request", req.id, "err", err)
		c.status = StatusError
		c.err = err
	}
	snap, ls := c.snapshotLocked(), c.listenersLocked()
	c.mu.Unlock()
	notify(ls, snap)
}

// Clear drops the input and the result, cancelling any request in flight.
func (c *Coordinator[In, Out]) Clear() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.abortLocked()
	var zeroIn In
	var zeroOut Out
	c.input, c.hasInput = zeroIn, false
	c.result, c.resultInput, c.hasResult = zeroOut, zeroIn, false
	c.status, c.err = StatusIdle, nil
	snap, ls := c.snapshotLocked(), c.listenersLocked()
	c.mu.Unlock()
	notify(ls, snap)
}

// Dispose cancels the request in flight and detaches all listeners. The
// coordinator ignores every later call.
func (c *Coordinator[In, Out]) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.abortLocked()
	c.disposed = true
	c.listeners = nil
}

func (c *Coordinator[In, Out]) abortLocked() {
	if c.current != nil {
		c.current.cancel()
		c.log.Debug("request cancelled", "request", c.current.id)
		c.current = nil
	}
}

// Wait blocks until every request goroutine has returned.
func (c *Coordinator[In, Out]) Wait() {
	c.wg.Wait()
}

func (c *Coordinator[In, Out]) Snapshot() Snapshot[In, Out] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator[In, Out]) snapshotLocked() Snapshot[In, Out] {
	return Snapshot[In, Out]{
		Status:    c.status,
		Input:     c.input,
		HasInput:  c.hasInput,
		Result:    c.result,
		HasResult: c.hasResult,
		Err:       c.err,
		Stale:     c.hasResult && (!c.hasInput || c.resultInput != c.input || c.status == StatusError),
	}
}

func (c *Coordinator[In, Out]) listenersLocked() []func(Snapshot[In, Out]) {
	ls := make([]func(Snapshot[In, Out]), 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	return ls
}

func notify[T any](ls []func(T), v T) {
	for _, l := range ls {
		l(v)
	}
}
