// Package app wires the panel together: it builds every component from a
// Config and launches the tasks on their cores.
package app

import (
	"context"
	"log/slog"
	"time"

	"keypanel/activity"
	"keypanel/fault"
	"keypanel/hal"
	"keypanel/internal/buildinfo"
	"keypanel/internal/config"
	"keypanel/kernel"
	"keypanel/keypad"
	"keypanel/logger"
	"keypanel/monitor"
	"keypanel/mqtt"
	"keypanel/transport"
)

// Core 0 priorities.
const (
	priorityLaunch        = 1
	priorityActivity      = 2
	priorityLog           = 3
	priorityLEDMonitor    = 4
	priorityButtonMonitor = 5
	priorityKeypad        = 6
)

// Core 1 is dedicated to the network.
const priorityNetwork = 1

const (
	stackSmall  = 256
	stackMedium = 1024
	stackLarge  = 4096

	networkFlashMs = 25
)

// System is a fully built panel that has not been started yet.
type System struct {
	h     hal.HAL
	cfg   *config.Config
	sched *kernel.Scheduler
	sink  *logger.Sink
	log   *slog.Logger
	sup   *fault.Supervisor

	activity *activity.LED
	client   *mqtt.Client
	loop     *mqtt.Loop
	keypad   *keypad.Keypad
	leds     *monitor.LEDMonitor
	buttons  *monitor.ButtonMonitor
}

// New builds the system described by cfg. cfg must be valid.
func New(h hal.HAL, cfg *config.Config) (*System, error) {
	return build(h, cfg, func(ec mqtt.EngineConfig) (mqtt.Engine, error) {
		return mqtt.NewEngine(cfg.Broker.Engine, ec)
	})
}

func build(h hal.HAL, cfg *config.Config, newEngine func(mqtt.EngineConfig) (mqtt.Engine, error)) (*System, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	sink, err := logger.NewSink(cfg.Queues.Log)
	if err != nil {
		return nil, err
	}
	log := slog.New(sink.Handler(level))

	s := &System{h: h, cfg: cfg, sched: kernel.NewScheduler(), sink: sink, log: log}
	s.sup = fault.New(s.sched, h.Watchdog(), log.With("task", "fault"), fault.Config{
		Drain:     cfg.Fault.Drain,
		ResetSpin: cfg.Fault.ResetSpin,
	})

	s.activity = activity.New(h.LED(), taskLog(log, "activity", kernel.Core0), activity.DefaultIdle)

	s.client, err = mqtt.NewClient(cfg.Limits.MQTT(), cfg.Queues.Command, cfg.Queues.Inbound, s.sup)
	if err != nil {
		return nil, err
	}
	engine, err := newEngine(mqtt.EngineConfig{
		Buffer:    cfg.Net.EngineBuffer,
		Inbox:     cfg.Queues.Inbound,
		IOTimeout: cfg.Net.ConnectTimeout,
		Log:       taskLog(log, "mqtt", kernel.Core1),
	})
	if err != nil {
		return nil, err
	}
	dialer, err := transport.NewDialer(cfg.Broker.Transport, h.Network())
	if err != nil {
		return nil, err
	}
	s.loop = mqtt.NewLoop(s.client, engine, dialer, s.sched, s.sup, s.activity,
		taskLog(log, "mqtt", kernel.Core1), mqtt.LoopConfig{
			Broker:         cfg.Broker.Addr(),
			Poll:           cfg.Net.Poll,
			ConnectTimeout: cfg.Net.ConnectTimeout,
			KeepAlive:      cfg.Broker.KeepAlive,
		})

	s.keypad, err = keypad.New(h.Keypad(), s.sched, s.sup, taskLog(log, "keypad", kernel.Core0), keypad.Config{
		Poll:        cfg.Keypad.Poll,
		Hold:        cfg.Keypad.Hold,
		LEDDepth:    cfg.Queues.LED,
		ButtonDepth: cfg.Queues.Button,
	})
	if err != nil {
		return nil, err
	}

	s.leds = monitor.NewLEDMonitor(s.client, s.keypad, s.activity, taskLog(log, "led monitor", kernel.Core0), monitor.Credentials{
		ClientID: cfg.Broker.ClientID,
		Username: cfg.Broker.Username,
		Password: cfg.Broker.Password,
	}, cfg.Limits.Payload)
	s.buttons = monitor.NewButtonMonitor(s.client, s.keypad, taskLog(log, "button monitor", kernel.Core0), cfg.Broker.ClientID)
	return s, nil
}

func taskLog(log *slog.Logger, task string, core kernel.Core) *slog.Logger {
	return log.With("task", task, "core", core.String())
}

// Logger returns the queued logger every component writes to.
func (s *System) Logger() *slog.Logger { return s.log }

// Status is a one-line summary for the simulator.
func (s *System) Status() string {
	if s.sup.Active() {
		return "FAULT: " + s.sup.Reason()
	}
	return s.client.State().String()
}

// Start creates the launch task and starts the scheduler. It returns at once.
func (s *System) Start() error {
	s.sup.HandlePanics()
	s.sched.OnTaskStart(func(t *kernel.Task) {
		logger.ForTask(s.log, t).Debug("task started", "priority", t.Priority())
	})
	if _, err := kernel.LaunchOnCore(s.sched, s.launch, "launch", stackMedium, priorityLaunch, kernel.Core0); err != nil {
		return err
	}
	s.sched.Start()
	return nil
}

// launch brings the panel up in order: logging, activity LED, network,
// network loop, keypad, then the monitors. It then idles.
func (s *System) launch(t *kernel.Task) {
	log := logger.ForTask(s.log, t)

	s.spawn("log", func(t *kernel.Task) { s.sink.Run(t, s.h.Logger()) }, stackMedium, priorityLog, kernel.Core0)
	log.Info("keypanel starting", "version", buildinfo.Short(), "commit", buildinfo.Commit)

	s.spawn("activity", s.activity.Run, stackSmall, priorityActivity, kernel.Core0)

	s.activity.Flash(networkFlashMs)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := s.h.Network().Up(ctx)
	cancel()
	if err != nil {
		s.sup.Fault("network bring-up failed", "err", err)
		return
	}
	log.Info("network up")

	s.spawn("mqtt", s.loop.Run, stackLarge, priorityNetwork, kernel.Core1)
	s.spawn("keypad", s.keypad.Run, stackMedium, priorityKeypad, kernel.Core0)
	s.spawn("button monitor", s.buttons.Run, stackMedium, priorityButtonMonitor, kernel.Core0)
	s.spawn("led monitor", s.leds.Run, stackMedium, priorityLEDMonitor, kernel.Core0)

	for {
		t.Delay(time.Second)
	}
}

func (s *System) spawn(name string, entry kernel.TaskFunc, stack uint32, priority uint8, core kernel.Core) {
	if _, err := kernel.LaunchOnCore(s.sched, entry, name, stack, priority, core); err != nil {
		s.sup.Fault("task launch failed", "task", name, "err", err)
	}
}

// Run builds and starts the panel and blocks forever. A build failure is
// written to the HAL logger and the watchdog is fired.
func Run(h hal.HAL, cfg *config.Config) {
	s, err := New(h, cfg)
	if err == nil {
		slog.SetDefault(s.Logger())
		err = s.Start()
	}
	if err != nil {
		h.Logger().WriteLineString("keypanel: " + err.Error())
		h.Watchdog().Reset()
	}
	select {}
}
