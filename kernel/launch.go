package kernel

import "fmt"

// helperStackWords is the stack given to the short-lived pinning helper.
const helperStackWords = 256

// launch carries one cross-core launch from the caller to the pinning helper.
// It lives only until the caller has been told creation is complete.
type launch struct {
	entry    TaskFunc
	name     string
	stack    uint32
	priority uint8
	core     Core

	rv *Rendezvous

	created *Task
	err     error
}

// LaunchOnCore creates a task whose first instruction runs on core.
//
// Before Start the task is created and pinned directly. After Start a helper
// task is created on the calling side, suspended, pinned to core and resumed,
// so the helper's first instruction already runs on core. The helper then
// creates the real task and pins it inside a critical section, so the new task
// cannot run before its affinity is fixed, even at a higher priority. The
// caller waits for the helper without a timeout.
func LaunchOnCore(s *Scheduler, entry TaskFunc, name string, stackWords uint32, priority uint8, core Core) (*Task, error) {
	if int(core) >= NumCores {
		return nil, fmt.Errorf("kernel: launch %s: core %s out of range", name, core)
	}

	if !s.Started() {
		t, err := s.Create(entry, name, stackWords, priority)
		if err != nil {
			return nil, err
		}
		s.SetAffinity(t, core)
		return t, nil
	}

	l := &launch{
		entry:    entry,
		name:     name,
		stack:    stackWords,
		priority: priority,
		core:     core,
		rv:       NewRendezvous(),
	}

	s.EnterCritical()
	helper, err := s.Create(l.pin, "pin:"+name, helperStackWords, priority)
	if err != nil {
		s.ExitCritical()
		return nil, err
	}
	s.Suspend(helper)
	s.ExitCritical()

	s.SetAffinity(helper, core)
	s.Resume(helper)

	l.rv.Proceed()
	l.rv.AwaitComplete()

	if l.err != nil {
		return nil, l.err
	}
	return l.created, nil
}

// pin is the helper task body. It runs on the target core.
func (l *launch) pin(helper *Task) {
	l.rv.AwaitProceed()

	s := helper.Scheduler()
	s.EnterCritical()
	t, err := s.Create(l.entry, l.name, l.stack, l.priority)
	if err == nil {
		s.SetAffinity(t, l.core)
	}
	s.ExitCritical()

	l.created, l.err = t, err
	l.rv.Complete()
}
