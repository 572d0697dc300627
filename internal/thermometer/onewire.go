package thermometer

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"thermod/pkg/logger"
)

// OneWire reads temperature off N DS18B20-style w1_slave sysfs files
// and accepts the mean when the devices agree within maxStdDev, same
// rule as AnalogBoard. Each file read is bounded by a timeout since
// the w1 kernel driver can occasionally stall on a flaky bus.
type OneWire struct {
	paths     []string
	maxStdDev float64
	timeout   time.Duration
	cal       *Calibrator
	log       *logger.Logger
}

func NewOneWire(paths []string, maxStdDev float64, timeout time.Duration, cal *Calibrator) *OneWire {
	if cal == nil {
		cal, _ = NewCalibrator(nil, nil)
	}
	return &OneWire{
		paths:     paths,
		maxStdDev: maxStdDev,
		timeout:   timeout,
		cal:       cal,
		log:       logger.New("OneWire"),
	}
}

func (o *OneWire) Read(ctx context.Context) (float64, error) {
	vals := make([]float64, 0, len(o.paths))
	for _, p := range o.paths {
		v, err := o.readOne(ctx, p)
		if err != nil {
			return 0, newError("onewire", err)
		}
		vals = append(vals, v)
	}

	mean, stddev := meanStdDev(vals)
	if stddev > o.maxStdDev {
		o.log.Error("devices disagree: stddev %.3f > max %.3f (%v)", stddev, o.maxStdDev, vals)
		return 0, newError("onewire", fmt.Errorf("device disagreement: stddev %.3f exceeds %.3f", stddev, o.maxStdDev))
	}

	return o.cal.Apply(mean), nil
}

// readOne reads one w1_slave file in a goroutine bounded by a timeout,
// since sysfs reads on a wedged 1-Wire bus can block indefinitely.
func (o *OneWire) readOne(ctx context.Context, path string) (float64, error) {
	type result struct {
		v   float64
		err error
	}
	done := make(chan result, 1)

	go func() {
		raw, err := os.ReadFile(path)
		if err != nil {
			done <- result{0, err}
			return
		}
		v, err := parseW1Slave(string(raw))
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(o.timeout):
		return 0, fmt.Errorf("reading %s timed out after %v", path, o.timeout)
	case r := <-done:
		if r.err != nil {
			return 0, fmt.Errorf("reading %s: %w", path, r.err)
		}
		return r.v, nil
	}
}

// parseW1Slave extracts the "t=NNNNN" millidegree suffix from the
// second line of a w1_slave file and requires the CRC line to contain YES.
func parseW1Slave(contents string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(contents), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("unexpected w1_slave format")
	}
	if !strings.Contains(lines[0], "YES") {
		return 0, fmt.Errorf("crc check failed")
	}

	idx := strings.Index(lines[1], "t=")
	if idx < 0 {
		return 0, fmt.Errorf("no temperature field found")
	}
	milli, err := strconv.Atoi(lines[1][idx+2:])
	if err != nil {
		return 0, fmt.Errorf("parsing temperature field: %w", err)
	}
	return float64(milli) / 1000.0, nil
}

func (o *OneWire) Close() error { return nil }
