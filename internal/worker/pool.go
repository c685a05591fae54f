// Package worker provides background execution for conversion task runs.
package worker

import (
	"context"
	"log"
	"sync"

	"github.com/altolabs/clefshift/internal/core/domain"
)

// RunFunc drives one task to a terminal state; the orchestrator's Run.
type RunFunc func(ctx context.Context, taskID string) error

// Pool manages the goroutines that execute task runs so a slow collaborator
// call on one task never blocks another task's progress or a status poll.
type Pool struct {
	run  RunFunc
	jobs chan string
	wg   sync.WaitGroup
}

// NewPool creates a pool with the given queue size. Worker goroutines start
// on Start.
func NewPool(run RunFunc, queueSize int) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{run: run, jobs: make(chan string, queueSize)}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for id := range p.jobs {
				if err := p.run(context.Background(), id); err != nil {
					log.Printf("WARN worker: task %s: %v", id, err)
				}
			}
		}()
	}
}

// Stop waits for in-flight runs to finish after closing the queue.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}

// Submit queues a task run without blocking. A full queue means the
// admission cap upstream was mis-sized; the caller gets backpressure.
func (p *Pool) Submit(taskID string) error {
	select {
	case p.jobs <- taskID:
		return nil
	default:
		log.Printf("WARN worker: queue full, rejecting task %s", taskID)
		return domain.ErrCapacityExceeded
	}
}
