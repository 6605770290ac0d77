package worker

import (
	"context"
)

// Chunk splits items into consecutive batches of at most size items
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var batches [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// itemJob runs fn on one item and remembers its position
type itemJob[T, R any] struct {
	index int
	item  T
	fn    func(ctx context.Context, item T) (R, error)
}

func (j *itemJob[T, R]) Execute(ctx context.Context) Result {
	out, err := j.fn(ctx, j.item)
	return &ItemResult[R]{Index: j.index, Value: out, Error: err}
}

// ItemResult is the outcome for one item of a batch run
type ItemResult[R any] struct {
	Index int
	Value R
	Error error
}

// GetError returns the item's error
func (r *ItemResult[R]) GetError() error {
	return r.Error
}

// BatchProcessor processes items batch by batch, each batch on a bounded worker pool
type BatchProcessor struct {
	batchSize   int
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(batchSize, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{batchSize: batchSize, concurrency: concurrency}
}

// Process runs fn over items. Batches run one after another so at most
// min(batchSize, concurrency) calls are in flight. Results keep input order.
// Items not started because ctx ended get ctx.Err().
func Process[T, R any](ctx context.Context, b *BatchProcessor, items []T, fn func(ctx context.Context, item T) (R, error)) []ItemResult[R] {
	out := make([]ItemResult[R], len(items))
	for i := range out {
		out[i] = ItemResult[R]{Index: i}
	}

	offset := 0
	for _, batch := range Chunk(items, b.batchSize) {
		if err := ctx.Err(); err != nil {
			for i := offset; i < len(items); i++ {
				out[i].Error = err
			}
			break
		}

		pool := NewPoolWithContext(ctx, b.concurrency)
		pool.Start()
		for i, item := range batch {
			pool.Submit(&itemJob[T, R]{index: offset + i, item: item, fn: fn})
		}

		done := make(map[int]bool, len(batch))
		for _, res := range pool.Wait() {
			r := res.(*ItemResult[R])
			out[r.Index] = *r
			done[r.Index] = true
		}
		// Jobs dropped by a cancelled pool never produced a result
		for i := range batch {
			if !done[offset+i] {
				out[offset+i].Error = context.Cause(ctx)
				if out[offset+i].Error == nil {
					out[offset+i].Error = context.Canceled
				}
			}
		}
		offset += len(batch)
	}
	return out
}
