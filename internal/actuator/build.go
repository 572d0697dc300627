package actuator

import (
	"fmt"
	"time"

	"thermod/internal/config"
)

// Build constructs the configured actuator variant.
func Build(cfg config.ActuatorConfig) (Actuator, error) {
	switch cfg.Variant {
	case "script":
		return NewScriptActuator(
			cfg.Script.SwitchOnCommand,
			cfg.Script.SwitchOffCommand,
			cfg.Script.StatusCommand,
			time.Duration(cfg.Script.TimeoutSeconds)*time.Second,
			cfg.Script.MaxRetries,
			time.Duration(cfg.Script.RetryDelayMillis)*time.Millisecond,
		)

	case "gpio":
		return NewGPIOActuator(cfg.GPIO.Chip, cfg.GPIO.Lines, cfg.GPIO.ActiveLow)

	case "fake":
		return NewFake(), nil

	default:
		return nil, fmt.Errorf("actuator: unknown variant %q", cfg.Variant)
	}
}
