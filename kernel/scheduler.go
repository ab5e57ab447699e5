package kernel

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const maxTasks = 32

// Core identifies an execution core.
type Core uint8

const (
	Core0 Core = iota
	Core1

	NumCores = 2

	// AnyCore means the task has no affinity.
	AnyCore Core = 0xFF
)

func (c Core) String() string {
	if c == AnyCore {
		return "any"
	}
	return fmt.Sprintf("%d", uint8(c))
}

var (
	ErrTooManyTasks = errors.New("too many tasks")
	ErrNoEntry      = errors.New("nil task entry")
)

// TaskFunc is a task entry point.
type TaskFunc func(t *Task)

// Scheduler models a dual-core preemptive scheduler on top of goroutines.
//
// Tasks are goroutines gated by the scheduler: a task does not execute its
// first instruction until the scheduler has started, it is not suspended, no
// critical section is held and its core is not frozen. The core a task starts
// on is its affinity at that moment.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	started  bool
	critical bool
	frozen   [NumCores]bool

	tasks []*Task

	boot    time.Time
	onStart func(*Task)
}

// NewScheduler creates a scheduler that has not started yet.
func NewScheduler() *Scheduler {
	s := &Scheduler{boot: time.Now()}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start releases every created task.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Started reports whether Start has been called.
func (s *Scheduler) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// OnTaskStart installs a hook run as each task begins, on the task itself.
func (s *Scheduler) OnTaskStart(fn func(*Task)) {
	s.mu.Lock()
	s.onStart = fn
	s.mu.Unlock()
}

// Create makes a new task with no affinity. Before Start it stays dormant.
func (s *Scheduler) Create(entry TaskFunc, name string, stackWords uint32, priority uint8) (*Task, error) {
	if entry == nil {
		return nil, fmt.Errorf("kernel: create %s: %w", name, ErrNoEntry)
	}
	if stackWords == 0 {
		return nil, fmt.Errorf("kernel: create %s: stack: %w", name, ErrBadDepth)
	}

	s.mu.Lock()
	if len(s.tasks) >= maxTasks {
		s.mu.Unlock()
		return nil, fmt.Errorf("kernel: create %s: %w", name, ErrTooManyTasks)
	}
	t := &Task{
		s:        s,
		id:       len(s.tasks) + 1,
		name:     name,
		stack:    stackWords,
		priority: priority,
		affinity: AnyCore,
		start:    AnyCore,
		done:     make(chan struct{}),
	}
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	go s.run(t, entry)
	return t, nil
}

func (s *Scheduler) run(t *Task, entry TaskFunc) {
	defer func() {
		s.mu.Lock()
		t.exited = true
		s.mu.Unlock()
		close(t.done)
	}()

	s.mu.Lock()
	for !s.runnableLocked(t) {
		s.cond.Wait()
	}
	t.started = true
	t.start = t.affinity
	hook := s.onStart
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			triggerPanic(PanicInfo{Task: t.name, Core: t.Core(), Value: r})
		}
	}()

	if hook != nil {
		hook(t)
	}
	entry(t)
}

func (s *Scheduler) runnableLocked(t *Task) bool {
	if !s.started || s.critical || t.suspended {
		return false
	}
	return !s.frozenLocked(t.affinity)
}

func (s *Scheduler) frozenLocked(c Core) bool {
	if c == AnyCore {
		for _, f := range s.frozen {
			if !f {
				return false
			}
		}
		return true
	}
	return int(c) < NumCores && s.frozen[c]
}

// SetAffinity pins t to core c.
func (s *Scheduler) SetAffinity(t *Task, c Core) {
	s.mu.Lock()
	t.affinity = c
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Suspend stops t from being scheduled. A running task stops at its next
// scheduling point.
func (s *Scheduler) Suspend(t *Task) {
	s.mu.Lock()
	t.suspended = true
	s.mu.Unlock()
}

// Resume makes a suspended task schedulable again.
func (s *Scheduler) Resume(t *Task) {
	s.mu.Lock()
	t.suspended = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

// EnterCritical holds off every task that has not yet executed its first
// instruction. Critical sections do not nest.
func (s *Scheduler) EnterCritical() {
	s.mu.Lock()
	for s.critical {
		s.cond.Wait()
	}
	s.critical = true
	s.mu.Unlock()
}

// ExitCritical releases the critical section.
func (s *Scheduler) ExitCritical() {
	s.mu.Lock()
	s.critical = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Freeze stops scheduling on core c. Tasks pinned there block at their next
// scheduling point and tasks not yet started there never start.
func (s *Scheduler) Freeze(c Core) {
	if int(c) >= NumCores {
		return
	}
	s.mu.Lock()
	s.frozen[c] = true
	s.mu.Unlock()
}

// Frozen reports whether core c has been frozen.
func (s *Scheduler) Frozen(c Core) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozenLocked(c)
}

// checkpoint blocks t while it is suspended or its core is frozen.
func (s *Scheduler) checkpoint(t *Task) {
	s.mu.Lock()
	for t.suspended || s.frozenLocked(t.affinity) {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// NowMs returns milliseconds since the scheduler was created.
func (s *Scheduler) NowMs() uint32 {
	return uint32(time.Since(s.boot).Milliseconds())
}

// TaskInfo is a snapshot of one task.
type TaskInfo struct {
	Name      string
	Priority  uint8
	Affinity  Core
	StartCore Core
	Started   bool
	Exited    bool
}

// Tasks returns a snapshot of every task created so far.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, TaskInfo{
			Name:      t.name,
			Priority:  t.priority,
			Affinity:  t.affinity,
			StartCore: t.start,
			Started:   t.started,
			Exited:    t.exited,
		})
	}
	return out
}
