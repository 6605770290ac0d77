// Package worker runs bounded-concurrency jobs for the batch analysis job.
package worker

import (
	"context"
	"sync"
)

// Job is one unit of work run by a Pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a Job hands back
type Result interface {
	GetError() error
}

// Pool runs submitted jobs on a fixed number of goroutines.
// Start it, Submit jobs, then Wait once.
type Pool struct {
	size    int
	jobs    chan Job
	results chan Result

	// drained is closed once every result has been appended to done
	drained chan struct{}
	done    []Result

	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPoolWithContext creates a pool of size workers (at least one) whose jobs see a context derived from parent.
// Cancelling parent stops workers from picking up queued jobs.
func NewPoolWithContext(parent context.Context, size int) *Pool {
	size = max(size, 1)
	ctx, cancel := context.WithCancel(parent)
	return &Pool{
		size:    size,
		jobs:    make(chan Job, size*2),
		results: make(chan Result, size*2),
		drained: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers and the result drain
func (p *Pool) Start() {
	go func() {
		defer close(p.drained)
		for r := range p.results {
			p.done = append(p.done, r)
		}
	}()

	p.wg.Add(p.size)
	for range p.size {
		go p.run()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			r := job.Execute(p.ctx)
			select {
			case p.results <- r:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It is dropped if the pool is already cancelled.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
	case p.jobs <- job:
	}
}

// Wait closes the queue, waits for the workers and returns results in completion order.
// Jobs dropped by cancellation have no result.
func (p *Pool) Wait() []Result {
	close(p.jobs)
	p.wg.Wait()
	p.closeResults()
	<-p.drained
	p.cancel()
	return p.done
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() { close(p.results) })
}
