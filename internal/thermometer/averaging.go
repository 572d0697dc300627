package thermometer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"thermod/pkg/logger"
)

type sample struct {
	at  time.Time
	val float64
}

// AveragingTask owns a background worker that samples the wrapped
// source on a fixed interval and smooths the result over a sliding
// window, trimming outliers at both ends. It implements both Source
// (Read) and the pkg/service.Runnable contract (Run), since its worker
// must be started by the supervisor alongside the rest of the daemon.
type AveragingTask struct {
	inner        Source
	avgInterval  time.Duration
	avgWindow    time.Duration
	avgSkip      float64
	sleepOnError time.Duration

	mu      sync.Mutex
	samples []sample
	log     *logger.Logger
}

// NewAveragingTask validates avgSkip in [0, 1) and avgWindow >= 2*avgInterval
// per spec.md §4.2, and returns the constructed task.
func NewAveragingTask(inner Source, avgInterval, avgWindow time.Duration, avgSkip float64, sleepOnError time.Duration) (*AveragingTask, error) {
	if avgSkip < 0 || avgSkip >= 1 {
		return nil, fmt.Errorf("averaging: avgskip %v must be in [0, 1)", avgSkip)
	}
	if avgWindow < 2*avgInterval {
		return nil, fmt.Errorf("averaging: avgtime %v must be >= 2x avgint %v", avgWindow, avgInterval)
	}
	return &AveragingTask{
		inner:        inner,
		avgInterval:  avgInterval,
		avgWindow:    avgWindow,
		avgSkip:      avgSkip,
		sleepOnError: sleepOnError,
		log:          logger.New("Averaging"),
	}, nil
}

// Run starts the sampling worker and blocks until ctx is canceled. On an
// uncaught panic in the sampling loop it restarts with exponential
// backoff capped at sleepOnError.
func (a *AveragingTask) Run(ctx context.Context) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := a.runLoopSafely(ctx); err != nil {
			a.log.Error("averaging worker crashed: %v (restarting in %v)", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > a.sleepOnError {
				backoff = a.sleepOnError
			}
			continue
		}
		return // ctx canceled cleanly
	}
}

func (a *AveragingTask) runLoopSafely(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ticker := time.NewTicker(a.avgInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v, serr := a.inner.Read(ctx)
			if serr != nil {
				a.log.Error("sample failed: %v", serr)
				continue
			}
			a.mu.Lock()
			a.samples = append(a.samples, sample{at: time.Now(), val: v})
			a.trimLocked()
			a.mu.Unlock()
		}
	}
}

func (a *AveragingTask) trimLocked() {
	cutoff := time.Now().Add(-a.avgWindow)
	idx := len(a.samples)
	for i, s := range a.samples {
		if s.at.After(cutoff) {
			idx = i
			break
		}
	}
	a.samples = a.samples[idx:]
}

// Read returns the trimmed mean of samples within the window: the top
// and bottom avgskip/2 fraction discarded before averaging.
func (a *AveragingTask) Read(_ context.Context) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trimLocked()

	if len(a.samples) == 0 {
		return 0, newError("averaging", fmt.Errorf("no samples yet"))
	}

	vals := make([]float64, len(a.samples))
	for i, s := range a.samples {
		vals[i] = s.val
	}
	sort.Float64s(vals)

	skip := int(float64(len(vals)) * a.avgSkip / 2)
	trimmed := vals[skip : len(vals)-skip]
	if len(trimmed) == 0 {
		trimmed = vals
	}

	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed)), nil
}

func (a *AveragingTask) Close() error { return a.inner.Close() }
