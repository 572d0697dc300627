// Package thermometer implements the composable temperature source
// pipeline: Source -> ScaleAdapter -> SimilarityChecker -> AveragingTask,
// with calibration applied inside each concrete source.
package thermometer

import (
	"context"
	"fmt"
	"math"
)

// Source is any object that can be asked for the current temperature in
// its own scale, and released when no longer needed.
type Source interface {
	Read(ctx context.Context) (float64, error)
	Close() error
}

// Error wraps a failing thermometer operation with the stage that
// produced it (script, analogboard, onewire, similarity, averaging),
// so callers can log and classify without string matching.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("thermometer(%s): %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(stage string, err error) error {
	return &Error{Stage: stage, Err: err}
}

// meanStdDev returns the arithmetic mean and population standard
// deviation of vals. Used by the Analog-board and 1-Wire sources to
// gate acceptance on channel agreement.
func meanStdDev(vals []float64) (mean, stddev float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean = sum / float64(len(vals))

	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / float64(len(vals)))
	return mean, stddev
}
