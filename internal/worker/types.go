package worker

import (
	"context"
	"time"
)

// Kind groups tasks that must not run concurrently with each other.
type Kind string

// Task is one unit of blocking work, typically a round trip to the
// optimization service.
type Task struct {
	ID      string                                 // unique id, filled by Submit when empty
	Kind    Kind                                   // at most one task per kind in flight; empty means ungated
	Run     func(ctx context.Context) (any, error) // the work itself
	Timeout time.Duration                          // per-task deadline, 0 for none

	release func()
}

// Result is the outcome of a Task.
type Result struct {
	TaskID   string
	Kind     Kind
	Value    any
	Err      error
	Duration time.Duration
}

// Success reports whether the task returned without error.
func (r Result) Success() bool {
	return r.Err == nil
}
