package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		n, size int
		want    []int
	}{
		{0, 3, nil},
		{5, 2, []int{2, 2, 1}},
		{4, 4, []int{4}},
		{3, 0, []int{3}},
	}

	for _, tt := range tests {
		items := make([]int, tt.n)
		batches := Chunk(items, tt.size)
		if len(batches) != len(tt.want) {
			t.Fatalf("Chunk(%d, %d) gave %d batches, want %d", tt.n, tt.size, len(batches), len(tt.want))
		}
		for i, b := range batches {
			if len(b) != tt.want[i] {
				t.Errorf("batch %d has %d items, want %d", i, len(b), tt.want[i])
			}
		}
	}
}

func TestProcess_KeepsInputOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3, 0, 6}
	b := NewBatchProcessor(3, 2)

	results := Process(context.Background(), b, items, func(ctx context.Context, n int) (string, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return fmt.Sprintf("item-%d", n), nil
	})

	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, r := range results {
		if r.Error != nil {
			t.Errorf("item %d: unexpected error %v", i, r.Error)
		}
		if r.Index != i || r.Value != fmt.Sprintf("item-%d", items[i]) {
			t.Errorf("result %d = %+v, want item-%d", i, r, items[i])
		}
	}
}

func TestProcess_BoundedConcurrency(t *testing.T) {
	items := make([]int, 20)
	b := NewBatchProcessor(8, 3)

	var current, max int32
	var mu sync.Mutex
	Process(context.Background(), b, items, func(ctx context.Context, _ int) (struct{}, error) {
		n := atomic.AddInt32(&current, 1)
		mu.Lock()
		if n > max {
			max = n
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return struct{}{}, nil
	})

	if max > 3 {
		t.Errorf("max concurrency %d exceeded 3 workers", max)
	}
}

func TestProcess_ErrorsPerItem(t *testing.T) {
	boom := errors.New("schema violation")
	results := Process(context.Background(), NewBatchProcessor(2, 2), []int{1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n * 10, nil
	})

	if results[0].Value != 10 || results[2].Value != 30 {
		t.Errorf("unexpected values: %+v", results)
	}
	if !errors.Is(results[1].Error, boom) {
		t.Errorf("expected item error, got %v", results[1].Error)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := Process(ctx, NewBatchProcessor(2, 2), []int{1, 2, 3, 4}, func(ctx context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return n, nil
	})

	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("expected no calls after cancellation, got %d", calls)
	}
	for i, r := range results {
		if !errors.Is(r.Error, context.Canceled) {
			t.Errorf("item %d: expected context.Canceled, got %v", i, r.Error)
		}
	}
}

func TestItemResult_GetError(t *testing.T) {
	r := &ItemResult[int]{Error: errors.New("x")}
	if r.GetError() == nil {
		t.Error("expected error")
	}
}
