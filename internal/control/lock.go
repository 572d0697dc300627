package control

import (
	"sync"
	"time"
)

// masterLock is the condition variable protecting the timetable, the
// enabled flag, and the actuator switching sequence (spec.md §5's
// "shared-resource policy"). Go has no condvar with a native timed
// wait, so WaitTimeout spawns a short-lived goroutine that blocks on
// Wait and races it against a timer; if the timer wins, that goroutine
// is left parked until the next Broadcast, then releases the lock that
// Wait reacquired for it and exits.
type masterLock struct {
	mu   sync.Mutex
	cond *sync.Cond
}

func newMasterLock() *masterLock {
	l := &masterLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *masterLock) Lock()   { l.mu.Lock() }
func (l *masterLock) Unlock() { l.mu.Unlock() }

// Notify wakes every current waiter. sync.Cond.Broadcast does not
// require the lock to be held by the caller, so every call site is
// free to call this while already holding the lock (the common case:
// mutate under the lock, then notify, then unlock).
func (l *masterLock) Notify() {
	l.cond.Broadcast()
}

// TryLockTimeout attempts to acquire the lock, retrying briefly until d
// elapses. It backs the control socket's 423 Conflict response (spec.md
// §4.5): a settings request arriving while the cycle is in the middle of
// a long actuator call fails fast instead of blocking the HTTP handler
// indefinitely.
func (l *masterLock) TryLockTimeout(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if l.mu.TryLock() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// WaitTimeout releases the lock, waits for Notify or the timeout, then
// reacquires the lock before returning in either case. Must be called
// with the lock held, exactly like sync.Cond.Wait.
func (l *masterLock) WaitTimeout(d time.Duration) {
	woke := make(chan struct{})
	abandoned := make(chan struct{})
	go func() {
		l.cond.Wait() // unlocks l.mu, blocks, relocks l.mu before returning
		select {
		case woke <- struct{}{}:
			// the caller is still waiting and takes over l.mu
		case <-abandoned:
			l.mu.Unlock()
		}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-woke:
		// l.mu was relocked by the goroutine above; we now own it.
	case <-timer.C:
		// l.mu is still unlocked (Wait released it on entry); the
		// parked goroutine reacquires it on some future Notify, sees
		// abandoned closed, and unlocks it again.
		close(abandoned)
		l.mu.Lock()
	}
}
