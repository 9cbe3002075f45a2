package checker

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunProcessesEachItemOnce(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	var inFlight, peak int32

	results := Run(context.Background(), Runner{Concurrency: 3}, items, func(ctx context.Context, n int) int {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return n * n
	})

	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	sort.Ints(results)
	for i, n := range items {
		if results[i] != n*n {
			t.Fatalf("result %d = %d, want %d", i, results[i], n*n)
		}
	}
	if p := atomic.LoadInt32(&peak); p > 3 {
		t.Fatalf("expected at most 3 concurrent workers, saw %d", p)
	}
}

func TestRunStopsClaimingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	items := make([]int, 50)
	var processed int32
	results := Run(ctx, Runner{Concurrency: 1}, items, func(ctx context.Context, n int) int {
		if atomic.AddInt32(&processed, 1) == 2 {
			cancel()
		}
		return n
	})

	if len(results) >= len(items) {
		t.Fatalf("expected cancellation to stop the queue, processed %d", len(results))
	}
	if int(atomic.LoadInt32(&processed)) != len(results) {
		t.Fatalf("every claimed item must produce a result: processed=%d results=%d", processed, len(results))
	}
}

func TestRunEmptyInput(t *testing.T) {
	results := Run(context.Background(), Runner{Concurrency: 4}, []string{}, func(ctx context.Context, s string) string { return s })
	if len(results) != 0 {
		t.Fatalf("expected no results, got %v", results)
	}
}
