package thermometer

import (
	"context"

	"thermod/internal/timetable"
)

// ScaleAdapter converts the wrapped source's scale to the daemon's
// working scale. A no-op when the two scales already agree.
type ScaleAdapter struct {
	inner Source
	from  timetable.Scale
	to    timetable.Scale
}

func NewScaleAdapter(inner Source, from, to timetable.Scale) *ScaleAdapter {
	return &ScaleAdapter{inner: inner, from: from, to: to}
}

func (s *ScaleAdapter) Read(ctx context.Context) (float64, error) {
	v, err := s.inner.Read(ctx)
	if err != nil {
		return 0, err
	}
	if s.from == s.to {
		return v, nil
	}
	return s.to.FromCelsius(s.from.ToCelsius(v)), nil
}

func (s *ScaleAdapter) Close() error { return s.inner.Close() }
