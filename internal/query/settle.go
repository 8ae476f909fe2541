package query

import (
	"context"
	"sync"
)

// Task is one member of a SettleAll fan-out.
type Task[T any] struct {
	Key string
	Run func(ctx context.Context) (T, error)
}

// Outcome is the settled result of a Task.
type Outcome[T any] struct {
	Key   string
	Value T
	Err   error
}

// SettleAll runs every task concurrently and waits for all of them,
// whether they succeed or fail. Outcomes are in task order.
func SettleAll[T any](ctx context.Context, tasks []Task[T]) []Outcome[T] {
	out := make([]Outcome[T], len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		out[i].Key = t.Key
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i].Value, out[i].Err = t.Run(ctx)
		}()
	}
	wg.Wait()
	return out
}

// Fulfilled returns the values of the successful outcomes.
func Fulfilled[T any](outcomes []Outcome[T]) []T {
	var vals []T
	for _, o := range outcomes {
		if o.Err == nil {
			vals = append(vals, o.Value)
		}
	}
	return vals
}

// Rejected returns the failed outcomes.
func Rejected[T any](outcomes []Outcome[T]) []Outcome[T] {
	var bad []Outcome[T]
	for _, o := range outcomes {
		if o.Err != nil {
			bad = append(bad, o)
		}
	}
	return bad
}
