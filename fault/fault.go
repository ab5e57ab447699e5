// Package fault is the process-wide terminal failure path.
//
// Any task may call Fault. The call logs, waits for log output to drain,
// freezes both cores and arms a watchdog reset. It never returns.
package fault

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"keypanel/hal"
	"keypanel/kernel"
)

// Faulter is implemented by anything that can take the device down.
// Fault never returns.
type Faulter interface {
	Fault(msg string, args ...any)
}

const (
	faultStackWords = 256
	faultPriority   = 255
)

// Config holds the supervisor delays.
type Config struct {
	// Drain is how long to wait for log output before freezing the cores.
	Drain time.Duration
	// ResetSpin is how long core 0 spins before firing the watchdog.
	ResetSpin time.Duration
}

// Supervisor implements Faulter on top of the scheduler and a watchdog.
type Supervisor struct {
	s   *kernel.Scheduler
	wd  hal.Watchdog
	log *slog.Logger
	cfg Config

	once   sync.Once
	active atomic.Bool
	reason atomic.Value // string

	// halt parks the calling goroutine forever.
	halt func()
}

func New(s *kernel.Scheduler, wd hal.Watchdog, log *slog.Logger, cfg Config) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		s:    s,
		wd:   wd,
		log:  log,
		cfg:  cfg,
		halt: func() { select {} },
	}
}

// Active reports whether a fault has been raised.
func (f *Supervisor) Active() bool { return f.active.Load() }

// Reason returns the message of the first fault, or "".
func (f *Supervisor) Reason() string {
	if v, ok := f.reason.Load().(string); ok {
		return v
	}
	return ""
}

// Fault logs msg at error level and takes the device down.
func (f *Supervisor) Fault(msg string, args ...any) {
	f.log.Error(msg, append(args, slog.Bool("fatal", true))...)

	first := false
	f.once.Do(func() {
		first = true
		f.reason.Store(msg)
		f.active.Store(true)
	})
	if !first {
		f.halt()
		return
	}

	if f.cfg.Drain > 0 {
		time.Sleep(f.cfg.Drain)
	}

	if !f.s.Started() {
		f.wd.Reset()
		f.halt()
		return
	}

	_, err0 := kernel.LaunchOnCore(f.s, f.core0, "fault0", faultStackWords, faultPriority, kernel.Core0)
	_, err1 := kernel.LaunchOnCore(f.s, f.core1, "fault1", faultStackWords, faultPriority, kernel.Core1)
	if err0 != nil || err1 != nil {
		f.wd.Reset()
	}
	f.halt()
}

func (f *Supervisor) freeze(c kernel.Core) {
	f.s.EnterCritical()
	f.s.Freeze(c)
	f.s.ExitCritical()
}

func (f *Supervisor) core0(t *kernel.Task) {
	f.freeze(kernel.Core0)
	time.Sleep(f.cfg.ResetSpin)
	f.wd.Reset()
	f.halt()
}

func (f *Supervisor) core1(t *kernel.Task) {
	f.freeze(kernel.Core1)
	f.halt()
}

// HandlePanics routes task panics into Fault.
func (f *Supervisor) HandlePanics() {
	kernel.SetPanicHandler(func(info kernel.PanicInfo) {
		for _, line := range strings.Split(string(info.Stack), "\n") {
			if line == "" {
				continue
			}
			f.log.Debug(line)
		}
		f.Fault("task panic", "task", info.Task, "core", info.Core.String(), "panic", fmt.Sprint(info.Value))
	})
}
