// Package control implements the outer scheduler (read -> decide ->
// act -> publish), the HTTP control socket, and monitor fan-out that
// tie the timetable, thermometer, and actuator together.
package control

import (
	"context"
	"time"

	"thermod/internal/actuator"
	"thermod/internal/thermometer"
	"thermod/internal/timetable"
	"thermod/pkg/eventbus"
	"thermod/pkg/history"
	"thermod/pkg/logger"
)

const statusTopic eventbus.Topic = "status"

// Cycle is the control loop described in spec.md §4.4: under the
// master lock it reads the thermometer, reads actuator status,
// consults the timetable, switches the actuator if the decision
// changed, and fans the resulting status out to monitors.
type Cycle struct {
	tt     *timetable.Timetable
	source thermometer.Source
	act    actuator.Actuator
	hist   *history.Store
	bus    *eventbus.Bus

	interval     time.Duration
	sleepOnError time.Duration

	lock    *masterLock
	enabled bool

	reload      <-chan struct{}
	toggleDebug <-chan struct{}

	log *logger.Logger
}

// NewCycle wires a Cycle around a pre-existing master lock so the
// caller can share that same lock with every other mutator of the
// timetable (the reload watcher, the control socket); each of them
// notifies the lock itself after mutating.
func NewCycle(lock *masterLock, tt *timetable.Timetable, source thermometer.Source, act actuator.Actuator, hist *history.Store, bus *eventbus.Bus, interval, sleepOnError time.Duration, reload, toggleDebug <-chan struct{}) *Cycle {
	return &Cycle{
		tt:           tt,
		source:       source,
		act:          act,
		hist:         hist,
		bus:          bus,
		interval:     interval,
		sleepOnError: sleepOnError,
		lock:         lock,
		enabled:      true,
		reload:       reload,
		toggleDebug:  toggleDebug,
		log:          logger.New("Cycle"),
	}
}

// Lock exposes the master lock to the socket component so settings
// mutations and cycle steps never interleave.
func (c *Cycle) Lock() *masterLock { return c.lock }

// Run executes the scheduler until ctx is canceled, at which point it
// flips enabled, notifies the lock, forces the actuator off, and returns.
func (c *Cycle) Run(ctx context.Context) {
	go c.watchSignals(ctx)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		default:
		}

		c.lock.Lock()
		sleep := c.step(ctx)
		stillEnabled := c.enabled
		if stillEnabled {
			c.lock.WaitTimeout(sleep)
			stillEnabled = c.enabled
		}
		c.lock.Unlock()

		if !stillEnabled {
			c.shutdown()
			return
		}
	}
}

func (c *Cycle) watchSignals(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.reload:
			c.lock.Lock()
			if err := c.tt.Reload(); err != nil {
				c.log.Error("reload failed, keeping previous timetable: %v", err)
			} else {
				c.log.Info("timetable reloaded")
			}
			c.lock.Notify()
			c.lock.Unlock()
		case <-c.toggleDebug:
			logger.EnableDebug(!logger.IsDebug())
			c.log.Info("debug logging toggled to %v", logger.IsDebug())
			c.bus.PrintStats()
		}
	}
}

// step runs exactly one read-decide-act-publish cycle. Must be called
// with the master lock already held; returns how long the scheduler
// should sleep next.
func (c *Cycle) step(ctx context.Context) time.Duration {
	now := time.Now()
	status, sleep, err := c.evaluate(ctx, now)
	if err != nil {
		c.log.Error("cycle step failed: %v", err)
	}

	if snapErr := c.hist.SaveSnapshot(status, now); snapErr != nil {
		c.log.Error("saving status snapshot: %v", snapErr)
	}
	c.bus.Publish(statusTopic, status)

	return sleep
}

func (c *Cycle) evaluate(ctx context.Context, now time.Time) (timetable.Status, time.Duration, error) {
	temp, err := c.source.Read(ctx)
	if err != nil {
		return c.errorStatus(now, err), c.sleepOnError, err
	}

	wasOn, err := c.act.IsOn()
	if err != nil {
		return c.errorStatus(now, err), c.sleepOnError, err
	}

	shouldBeOn, status := c.tt.ShouldBeOn(now, temp, wasOn)
	status.CurrentTemperature = temp

	if shouldBeOn != wasOn {
		if shouldBeOn {
			err = c.act.SwitchOn()
		} else {
			err = c.act.SwitchOff()
		}
		if err != nil {
			return c.errorStatus(now, err), c.sleepOnError, err
		}
	}
	status.ActuatorOn = shouldBeOn

	return status, c.interval, nil
}

func (c *Cycle) errorStatus(now time.Time, err error) timetable.Status {
	return timetable.Status{
		Timestamp: now.Format(time.RFC3339),
		Error:     err.Error(),
	}
}

// shutdown flips enabled, notifies any waiter, and forces the
// actuator off so the system fails safe on exit.
func (c *Cycle) shutdown() {
	c.lock.Lock()
	c.enabled = false
	c.lock.Notify()
	c.lock.Unlock()

	if err := c.act.SwitchOff(); err != nil {
		c.log.Error("forced switch_off on shutdown failed: %v", err)
	}
	if err := c.act.Close(); err != nil {
		c.log.Error("closing actuator: %v", err)
	}
	if err := c.source.Close(); err != nil {
		c.log.Error("closing thermometer source: %v", err)
	}
	c.log.Info("cycle stopped")
}

// Shutdown lets external callers request a graceful stop without
// waiting for a signal.
func (c *Cycle) Shutdown() {
	c.lock.Lock()
	c.enabled = false
	c.lock.Notify()
	c.lock.Unlock()
}
