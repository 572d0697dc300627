package actuator

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"thermod/pkg/logger"
)

// GPIOActuator drives one or more GPIO lines on a Linux GPIO character
// device, all switched together. Status is read back from the pins
// themselves rather than trusted from the last command: disagreement
// across pins raises HeatingError instead of guessing which is right.
type GPIOActuator struct {
	lines     []*gpiocdev.Line
	offsets   []int // parallel to lines, kept locally since the line itself isn't asked for its offset back
	activeLow bool
	log       *logger.Logger
}

func NewGPIOActuator(chip string, offsets []int, activeLow bool) (*GPIOActuator, error) {
	if len(offsets) == 0 {
		return nil, fmt.Errorf("actuator: gpio requires at least one line")
	}

	initial := 0
	if activeLow {
		initial = 1
	}

	lines := make([]*gpiocdev.Line, 0, len(offsets))
	opened := make([]int, 0, len(offsets))
	for _, off := range offsets {
		line, err := gpiocdev.RequestLine(chip, off,
			gpiocdev.WithConsumer("thermod"),
			gpiocdev.AsOutput(initial),
		)
		if err != nil {
			for _, l := range lines {
				l.Close()
			}
			return nil, fmt.Errorf("actuator: requesting line %d on %s: %w", off, chip, err)
		}
		lines = append(lines, line)
		opened = append(opened, off)
	}

	return &GPIOActuator{
		lines:     lines,
		offsets:   opened,
		activeLow: activeLow,
		log:       logger.New("GPIOActuator"),
	}, nil
}

func (g *GPIOActuator) SwitchOn() error  { return g.set(true) }
func (g *GPIOActuator) SwitchOff() error { return g.set(false) }

func (g *GPIOActuator) set(on bool) error {
	v := g.levelFor(on)
	for i, line := range g.lines {
		if err := line.SetValue(v); err != nil {
			return newError("switch", fmt.Errorf("line %d: %w", g.offsets[i], err))
		}
	}
	return nil
}

func (g *GPIOActuator) levelFor(on bool) int {
	if on != g.activeLow {
		return 1
	}
	return 0
}

// IsOn reads back every configured pin. All pins must agree; any
// disagreement raises an error rather than guessing a majority state.
func (g *GPIOActuator) IsOn() (bool, error) {
	var first int
	for i, line := range g.lines {
		v, err := line.Value()
		if err != nil {
			return false, newError("status", fmt.Errorf("line %d: %w", g.offsets[i], err))
		}
		if i == 0 {
			first = v
		} else if v != first {
			return false, newError("status", fmt.Errorf("pins disagree: line %d reads %d, expected %d", g.offsets[i], v, first))
		}
	}
	on := (first == 1) != g.activeLow
	return on, nil
}

func (g *GPIOActuator) Close() error {
	var lastErr error
	for _, line := range g.lines {
		if err := line.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
