package thermometer

import (
	"context"
	"sync"
)

// Fake is a settable, optionally-erroring source for tests and for
// running the daemon without sensor hardware (the "fake" variant).
type Fake struct {
	mu     sync.Mutex
	temp   float64
	err    error
	closed bool
}

func NewFake(initial float64) *Fake {
	return &Fake{temp: initial}
}

func (f *Fake) Set(temp float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.temp = temp
}

func (f *Fake) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *Fake) Read(_ context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, newError("fake", f.err)
	}
	return f.temp, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
