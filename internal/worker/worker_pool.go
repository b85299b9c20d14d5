// ============================================================================
// rowplan Worker Pool - concurrent task executor
// ============================================================================
//
// Package: internal/worker
// File: worker_pool.go
// Function: Manages the lifecycle of a fixed set of Worker goroutines, hands
//           them tasks and collects their results.
//
// Architecture:
//   ┌─────────────┐
//   │ Controller  │ --Submit()--> taskCh
//   └─────────────┘
//         ↑
//     Results()
//         ↑
//   ┌─────────────┐
//   │   Pool      │
//   │  ┌────────┐ │
//   │  │Worker 1│←── taskCh
//   │  │Worker 2│←── taskCh   ──→ resultCh
//   │  └────────┘ │
//   └─────────────┘
//
// Lifecycle:
//   1. NewPool()       - create channels
//   2. Start(n)        - launch n workers
//   3. Submit(task)    - queue a task
//   4. Results()       - channel the owner selects on
//   5. Stop()          - close taskCh, wait for workers, close Results()
//
// Kind gates:
//   Each task Kind owns a weight-1 semaphore. Submit takes it with
//   TryAcquire and fails fast with ErrBusy when a task of the same kind is
//   still queued or running; the worker releases it once Run returns. This
//   is the "trigger disabled while pending" rule for upload, optimize and
//   export.
//
// Errors:
//   - ErrPoolNotStarted: Submit before Start
//   - ErrPoolClosed:     Submit after Stop
//   - ErrBusy:           a task of the same kind is in flight
//
// ============================================================================

package worker

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

var log = slog.Default()

var (
	// ErrPoolClosed means the pool has been stopped.
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolNotStarted means Start has not been called.
	ErrPoolNotStarted = errors.New("worker pool not started")
	// ErrBusy means a task of the same kind is still in flight.
	ErrBusy = errors.New("task of this kind already in flight")
)

// Pool is a fixed set of workers sharing one task queue.
type Pool struct {
	workers  []*Worker
	taskCh   chan Task
	resultCh chan Result
	stopCh   chan struct{}
	wg       sync.WaitGroup
	started  bool
	stopped  bool
	gates    map[Kind]*semaphore.Weighted
	mu       sync.Mutex
}

// NewPool creates a pool whose task and result channels hold bufferSize
// entries.
func NewPool(bufferSize int) *Pool {
	return &Pool{
		workers:  make([]*Worker, 0),
		taskCh:   make(chan Task, bufferSize),
		resultCh: make(chan Result, bufferSize),
		stopCh:   make(chan struct{}),
		gates:    make(map[Kind]*semaphore.Weighted),
	}
}

// Start launches workerCount workers.
func (p *Pool) Start(workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("pool already started")
	}

	for i := 0; i < workerCount; i++ {
		worker := newWorker(i, p.taskCh, p.resultCh, p.stopCh)
		p.workers = append(p.workers, worker)

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run()
		}(worker)
	}

	p.started = true
	return nil
}

// Submit queues a task and returns its id. Tasks of a kind that is already
// in flight are rejected with ErrBusy.
//
// The mutex is held across the send so Stop cannot close taskCh underneath
// it; a full queue therefore blocks Stop until a worker frees a slot.
func (p *Pool) Submit(task Task) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return "", ErrPoolNotStarted
	}
	if p.stopped {
		return "", ErrPoolClosed
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Kind != "" {
		gate := p.gateLocked(task.Kind)
		if !gate.TryAcquire(1) {
			return "", ErrBusy
		}
		task.release = func() { gate.Release(1) }
	}

	p.taskCh <- task
	return task.ID, nil
}

// Busy reports whether a task of the kind is queued or running.
func (p *Pool) Busy(kind Kind) bool {
	p.mu.Lock()
	gate := p.gateLocked(kind)
	p.mu.Unlock()

	if !gate.TryAcquire(1) {
		return true
	}
	gate.Release(1)
	return false
}

func (p *Pool) gateLocked(kind Kind) *semaphore.Weighted {
	gate, ok := p.gates[kind]
	if !ok {
		gate = semaphore.NewWeighted(1)
		p.gates[kind] = gate
	}
	return gate
}

// Results exposes the result channel for select loops. It is closed by Stop.
func (p *Pool) Results() <-chan Result {
	return p.resultCh
}

// Stop closes the task queue and waits for running tasks to finish. Results
// nobody reads anymore are dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stopCh)
	close(p.taskCh)
	p.mu.Unlock()

	p.wg.Wait()
	close(p.resultCh)
}
