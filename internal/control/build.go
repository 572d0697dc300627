package control

import (
	"context"
	"fmt"
	"time"

	"thermod/internal/actuator"
	"thermod/internal/config"
	"thermod/internal/thermometer"
	"thermod/internal/timetable"
	"thermod/pkg/eventbus"
	"thermod/pkg/history"
	"thermod/pkg/logger"
)

// Daemon bundles every long-running component the cobra entrypoint
// needs to start under the service supervisor.
type Daemon struct {
	Cycle  *Cycle
	Socket *Socket
	Pipe   *thermometer.Pipeline
}

// Build wires config -> timetable -> thermometer pipeline -> actuator
// -> cycle -> socket, matching SPEC_FULL.md §2's dataflow. ctx bounds
// the fsnotify watcher and the SIGHUP fan-in goroutine; it should be the
// same context the cobra entrypoint cancels on shutdown.
func Build(ctx context.Context, cfg *config.Config, version string, sighupReload, toggleDebug <-chan struct{}) (*Daemon, error) {
	scale := timetable.Scale(cfg.WorkingScale)

	hist, err := history.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	// onChange is left nil: every call site that mutates the timetable
	// (the socket's PATCH handler, the reload watchers below) already
	// holds the master lock and notifies it explicitly afterwards, so
	// an onChange callback here would try to re-lock a lock the caller
	// is still holding.
	lock := newMasterLock()
	tt := timetable.New(cfg.TimetablePath, hist, nil)
	if err := tt.Load(); err != nil {
		return nil, fmt.Errorf("loading timetable: %w", err)
	}

	pipe, err := thermometer.Build(cfg.Thermometer, scale)
	if err != nil {
		return nil, fmt.Errorf("building thermometer pipeline: %w", err)
	}

	act, err := actuator.Build(cfg.Actuator)
	if err != nil {
		return nil, fmt.Errorf("building actuator: %w", err)
	}

	bus := cfg.EventBus
	if bus == nil {
		bus = eventbus.New()
	}

	// reload fans in both triggers the cycle reacts to identically: a
	// SIGHUP from the process and an external edit caught by fsnotify.
	reload := make(chan struct{}, 1)
	watchLog := logger.New("TimetableWatch")
	go watchTimetableFile(ctx, cfg.TimetablePath, reload, watchLog)
	go fanInReload(ctx, sighupReload, reload)

	cycle := NewCycle(
		lock, tt, pipe.Source, act, hist, bus,
		time.Duration(cfg.Interval)*time.Second,
		time.Duration(cfg.SleepOnError)*time.Second,
		reload, toggleDebug,
	)

	socket := NewSocket(cycle, tt, bus, version)

	return &Daemon{Cycle: cycle, Socket: socket, Pipe: pipe}, nil
}

// fanInReload relays every signal from sighup onto out without blocking
// the sender, matching out's capacity-1 coalescing buffer.
func fanInReload(ctx context.Context, sighup <-chan struct{}, out chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sighup:
			if !ok {
				return
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}
