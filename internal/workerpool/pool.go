// Package workerpool runs independent units of work on a bounded pool and
// joins them before returning.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Failure records an input whose task returned an error or panicked
type Failure[T any] struct {
	Input T
	Err   error
}

func (f Failure[T]) Error() string {
	return fmt.Sprintf("%v: %v", f.Input, f.Err)
}

func (f Failure[T]) Unwrap() error {
	return f.Err
}

// Func produces one key/value pair for an input
type Func[T any, K comparable, V any] func(ctx context.Context, in T) (K, V, error)

// Run applies fn to every input using at most workers goroutines (NumCPU when
// workers <= 0). A failing task never stops its siblings. Run returns only
// after every task has finished; successes are keyed by the key fn returned
// and failures are ordered as their inputs were.
func Run[T any, K comparable, V any](ctx context.Context, workers int, inputs []T, fn Func[T, K, V]) (map[K]V, []Failure[T]) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(map[K]V, len(inputs))
	type indexed struct {
		pos int
		Failure[T]
	}
	var (
		mu       sync.Mutex
		failures []indexed
	)

	var g errgroup.Group
	g.SetLimit(workers)

	for i, in := range inputs {
		g.Go(func() (err error) {
			var (
				k K
				v V
			)
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				mu.Lock()
				if err != nil {
					failures = append(failures, indexed{pos: i, Failure: Failure[T]{Input: in, Err: err}})
				} else {
					results[k] = v
				}
				mu.Unlock()
				// Per-task errors are recorded, not propagated to the group.
				err = nil
			}()

			if err := ctx.Err(); err != nil {
				return err
			}
			k, v, err = fn(ctx, in)
			return err
		})
	}
	_ = g.Wait()

	sort.Slice(failures, func(a, b int) bool { return failures[a].pos < failures[b].pos })
	out := make([]Failure[T], len(failures))
	for i := range failures {
		out[i] = failures[i].Failure
	}
	return results, out
}
