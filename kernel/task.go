package kernel

import "time"

// Task is a handle to a scheduled task.
type Task struct {
	s        *Scheduler
	id       int
	name     string
	stack    uint32
	priority uint8

	// guarded by s.mu
	affinity  Core
	start     Core
	suspended bool
	started   bool
	exited    bool

	done chan struct{}
}

func (t *Task) ID() int            { return t.id }
func (t *Task) Name() string       { return t.name }
func (t *Task) Priority() uint8    { return t.priority }
func (t *Task) StackWords() uint32 { return t.stack }

// Core returns the core the task is currently pinned to.
func (t *Task) Core() Core {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.affinity
}

// StartCore returns the core the task executed its first instruction on.
// It is AnyCore until the task has started.
func (t *Task) StartCore() Core {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.start
}

// Done is closed when the task's entry function returns.
func (t *Task) Done() <-chan struct{} { return t.done }

// Scheduler returns the scheduler that owns the task.
func (t *Task) Scheduler() *Scheduler { return t.s }

// Checkpoint is an explicit scheduling point. It blocks while the task is
// suspended or its core is frozen.
func (t *Task) Checkpoint() {
	t.s.checkpoint(t)
}

// Delay sleeps for d and then passes a scheduling point.
func (t *Task) Delay(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
	t.Checkpoint()
}
