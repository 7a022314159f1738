package jobs

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs submitted tasks on a bounded number of concurrent workers.
// Tasks are fire-and-forget: there is no cancellation of a task once it
// starts, and callers observe outcomes only through the job registry.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewPool creates a pool that runs at most workers tasks concurrently.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

// Submit schedules a task for background execution. It returns immediately;
// the task waits for a free worker slot before running. Panics inside a task
// are recovered so a misbehaving job cannot take down the process.
func (p *Pool) Submit(task func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			log.Printf("Worker pool acquire failed: %v", err)
			return
		}
		defer p.sem.Release(1)

		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("Background task panicked: %v", rec)
			}
		}()

		task()
	}()
}

// Wait blocks until all submitted tasks have finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
