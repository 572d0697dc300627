package thermometer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"thermod/pkg/logger"
)

type scriptReading struct {
	Temperature *float64 `json:"temperature"`
	Error       *string  `json:"error"`
}

// ScriptSource spawns a configured external command on every Read and
// decodes its stdout as {"temperature": num|null, "error": str|null}.
// A non-zero exit code or a populated "error" field is reported as a
// ThermometerError carrying the sub-error.
type ScriptSource struct {
	command string
	args    []string
	timeout time.Duration
	cal     *Calibrator
	log     *logger.Logger
}

func NewScriptSource(command string, args []string, timeout time.Duration, cal *Calibrator) *ScriptSource {
	if cal == nil {
		cal, _ = NewCalibrator(nil, nil)
	}
	return &ScriptSource{
		command: command,
		args:    args,
		timeout: timeout,
		cal:     cal,
		log:     logger.New("ScriptTherm"),
	}
}

func (s *ScriptSource) Read(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.command, s.args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		s.log.Error("%s exited with error: %v (stderr: %s)", s.command, err, stderr.String())
		return 0, newError("script", fmt.Errorf("%s: %w", s.command, err))
	}

	var reading scriptReading
	if err := json.Unmarshal(stdout.Bytes(), &reading); err != nil {
		return 0, newError("script", fmt.Errorf("decoding %s output: %w", s.command, err))
	}
	if reading.Error != nil && *reading.Error != "" {
		return 0, newError("script", fmt.Errorf("%s: %s", s.command, *reading.Error))
	}
	if reading.Temperature == nil {
		return 0, newError("script", fmt.Errorf("%s: no temperature in response", s.command))
	}

	return s.cal.Apply(*reading.Temperature), nil
}

func (s *ScriptSource) Close() error { return nil }
