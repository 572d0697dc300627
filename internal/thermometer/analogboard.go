package thermometer

import (
	"context"
	"fmt"

	"thermod/pkg/logger"
	"thermod/pkg/modbus"
)

// AnalogBoard reads temperature off N modbus registers (one per probe
// channel wired to the same physical location) and accepts the mean
// when the channels agree within maxStdDev.
type AnalogBoard struct {
	client     *modbus.Client
	registers  []string
	maxStdDev  float64
	cal        *Calibrator
	log        *logger.Logger
}

func NewAnalogBoard(client *modbus.Client, registers []string, maxStdDev float64, cal *Calibrator) *AnalogBoard {
	if cal == nil {
		cal, _ = NewCalibrator(nil, nil)
	}
	return &AnalogBoard{
		client:    client,
		registers: registers,
		maxStdDev: maxStdDev,
		cal:       cal,
		log:       logger.New("AnalogBoard"),
	}
}

func (a *AnalogBoard) Read(_ context.Context) (float64, error) {
	vals := make([]float64, 0, len(a.registers))
	for _, name := range a.registers {
		v, err := modbus.ReadTyped[float32](a.client, name)
		if err != nil {
			return 0, newError("analogboard", fmt.Errorf("reading %s: %w", name, err))
		}
		vals = append(vals, float64(v))
	}

	mean, stddev := meanStdDev(vals)
	if stddev > a.maxStdDev {
		a.log.Error("channels disagree: stddev %.3f > max %.3f (%v)", stddev, a.maxStdDev, vals)
		return 0, newError("analogboard", fmt.Errorf("channel disagreement: stddev %.3f exceeds %.3f", stddev, a.maxStdDev))
	}

	return a.cal.Apply(mean), nil
}

func (a *AnalogBoard) Close() error {
	a.client.Close()
	return nil
}
