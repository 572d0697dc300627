package thermometer

import "fmt"

// Calibrator is a piecewise-linear transform from a raw reading to a
// reference temperature, applied inside a source (it is a property of
// the raw reading, not a pipeline stage). An empty Calibrator is the
// identity, for initial data collection before reference points exist.
type Calibrator struct {
	tRaw []float64
	tRef []float64
}

// NewCalibrator builds a Calibrator from two ordered, equal-length
// sequences of reference points. Passing two empty slices yields the
// identity transform.
func NewCalibrator(tRaw, tRef []float64) (*Calibrator, error) {
	if len(tRaw) != len(tRef) {
		return nil, fmt.Errorf("calibration: tRaw and tRef must have equal length (%d != %d)", len(tRaw), len(tRef))
	}
	if len(tRaw) == 0 {
		return &Calibrator{}, nil
	}
	if len(tRaw) < 2 {
		return nil, fmt.Errorf("calibration: need at least 2 reference points, got %d", len(tRaw))
	}
	for i := 1; i < len(tRaw); i++ {
		if tRaw[i] <= tRaw[i-1] {
			return nil, fmt.Errorf("calibration: tRaw must be strictly ascending")
		}
	}
	return &Calibrator{tRaw: tRaw, tRef: tRef}, nil
}

// Apply maps a raw reading to its calibrated value, interpolating
// between the nearest bracketing points or extrapolating linearly
// beyond the first/last point.
func (c *Calibrator) Apply(raw float64) float64 {
	n := len(c.tRaw)
	if n == 0 {
		return raw
	}

	if raw <= c.tRaw[0] {
		return lerp(raw, c.tRaw[0], c.tRef[0], c.tRaw[1], c.tRef[1])
	}
	if raw >= c.tRaw[n-1] {
		return lerp(raw, c.tRaw[n-2], c.tRef[n-2], c.tRaw[n-1], c.tRef[n-1])
	}
	for i := 0; i < n-1; i++ {
		if raw >= c.tRaw[i] && raw <= c.tRaw[i+1] {
			return lerp(raw, c.tRaw[i], c.tRef[i], c.tRaw[i+1], c.tRef[i+1])
		}
	}
	return raw // unreachable given the bounds checks above
}

func lerp(x, x0, y0, x1, y1 float64) float64 {
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}
