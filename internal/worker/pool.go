// Package worker runs one operation across many inputs with bounded
// concurrency.
package worker

import (
	"context"
	"sync"
)

// Result pairs an input with the output or error the operation produced.
type Result[T any] struct {
	Input  string
	Output T
	Err    error
}

// Run calls fn for every input using at most concurrency goroutines and returns
// the results in input order. A concurrency below 1 is treated as 1. Inputs not
// yet started when ctx is done are reported with ctx.Err().
func Run[T any](ctx context.Context, inputs []string, concurrency int, fn func(context.Context, string) (T, error)) []Result[T] {
	results := make([]Result[T], len(inputs))
	if len(inputs) == 0 {
		return results
	}
	concurrency = max(1, min(concurrency, len(inputs)))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i].Input = inputs[i]
				if err := ctx.Err(); err != nil {
					results[i].Err = err
					continue
				}
				results[i].Output, results[i].Err = fn(ctx, inputs[i])
			}
		}()
	}
	for i := range inputs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
