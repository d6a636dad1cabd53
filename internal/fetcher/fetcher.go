// Package fetcher runs independent fetch tasks with a fixed bound on in-flight network work.
package fetcher

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"
)

// Task is one unit of fetch work.
// Cached, when set, is consulted first in the caller's flow; a hit skips Fetch
// and never occupies a worker slot. Fetch runs inside the bounded pool.
type Task[T any] struct {
	Cached func(ctx context.Context) (T, bool, error)
	Fetch  func(ctx context.Context) (T, error)
}

// Result is the outcome of the task at the same index
type Result[T any] struct {
	Value  T
	Err    error
	Cached bool
}

// Fetcher executes tasks with at most Concurrency fetches outstanding
type Fetcher[T any] struct {
	concurrency int
}

// New creates a fetcher with the given concurrency bound
func New[T any](concurrency int) (*Fetcher[T], error) {
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}
	return &Fetcher[T]{concurrency: concurrency}, nil
}

// Concurrency returns the bound on in-flight fetches
func (f *Fetcher[T]) Concurrency() int {
	return f.concurrency
}

// Run executes all tasks and returns one result per task, positionally aligned with tasks.
// A failing task does not cancel its siblings; the caller decides what a failure means.
func (f *Fetcher[T]) Run(ctx context.Context, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	pending := make(map[int]pond.Result[T], len(tasks))

	pool := pond.NewResultPool[T](f.concurrency, pond.WithContext(ctx))
	defer pool.StopAndWait()

	for i, task := range tasks {
		if task.Cached != nil {
			value, ok, err := task.Cached(ctx)
			if err != nil {
				results[i].Err = err
				continue
			}
			if ok {
				results[i] = Result[T]{Value: value, Cached: true}
				continue
			}
		}

		if task.Fetch == nil {
			results[i].Err = fmt.Errorf("task %d has no fetch function", i)
			continue
		}

		fetch := task.Fetch
		pending[i] = pool.SubmitErr(func() (T, error) {
			return fetch(ctx)
		})
	}

	for i := range tasks {
		future, ok := pending[i]
		if !ok {
			continue
		}
		results[i].Value, results[i].Err = future.Wait()
	}

	return results
}

// FirstError returns the error of the lowest-index failed result
func FirstError[T any](results []Result[T]) (int, error) {
	for i, r := range results {
		if r.Err != nil {
			return i, r.Err
		}
	}
	return -1, nil
}
