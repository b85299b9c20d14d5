// ============================================================================
// rowplan Worker - task execution unit
// ============================================================================
//
// Package: internal/worker
// File: worker.go
// Function: A Worker is one goroutine that pulls tasks from the shared task
//           channel, runs them under a deadline and reports a Result.
//
// Execution model:
//   for task := range taskCh
//     ├─ context with timeout (when the task sets one)
//     ├─ task.Run(ctx)
//     ├─ release the task's kind gate
//     └─ send Result (or give up when the pool is stopping)
//
// A panicking task is converted into a failed Result so a bad callback cannot
// take a worker down with it.
//
// ============================================================================

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoRun is reported for a task submitted without a Run function.
var ErrNoRun = errors.New("task has no run function")

// Worker represents a work execution unit.
type Worker struct {
	id       int
	taskCh   <-chan Task
	resultCh chan<- Result
	stopCh   <-chan struct{}
}

func newWorker(id int, taskCh <-chan Task, resultCh chan<- Result, stopCh <-chan struct{}) *Worker {
	return &Worker{
		id:       id,
		taskCh:   taskCh,
		resultCh: resultCh,
		stopCh:   stopCh,
	}
}

// Run is the worker loop. It returns when the task channel is closed.
func (w *Worker) Run() {
	for task := range w.taskCh {
		start := time.Now()

		ctx := context.Background()
		var cancel context.CancelFunc = func() {}
		if task.Timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		}
		value, err := w.execute(ctx, task)
		cancel()
		if task.release != nil {
			task.release()
		}

		result := Result{
			TaskID:   task.ID,
			Kind:     task.Kind,
			Value:    value,
			Err:      err,
			Duration: time.Since(start),
		}

		select {
		case w.resultCh <- result:
		case <-w.stopCh:
			log.Debug("dropping result of stopped pool", "worker", w.id, "task", task.ID)
		}
	}
}

func (w *Worker) execute(ctx context.Context, task Task) (value any, err error) {
	if task.Run == nil {
		return nil, ErrNoRun
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "worker", w.id, "task", task.ID, "kind", task.Kind, "panic", r)
			value, err = nil, fmt.Errorf("task %s panicked: %v", task.ID, r)
		}
	}()
	return task.Run(ctx)
}
