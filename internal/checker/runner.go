package checker

import (
	"context"
	"sync"
)

// Runner executes independent tasks on a fixed number of workers fed from a
// queue. Results are collected under a mutex in completion order.
type Runner struct {
	Concurrency int // number of workers; values below 1 mean one
}

// Run claims every item exactly once and applies work to it. Once ctx is
// canceled workers stop claiming new items; the returned slice then holds
// only the items that were processed, in completion order. Run joins all
// workers before returning.
func Run[T, R any](ctx context.Context, r Runner, items []T, work func(context.Context, T) R) []R {
	workers := r.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	queue := make(chan T)
	var wg sync.WaitGroup
	mu := sync.Mutex{}
	results := make([]R, 0, len(items))

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				result := work(ctx, item)

				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case queue <- item:
		}
	}
	close(queue)

	wg.Wait()
	return results
}
