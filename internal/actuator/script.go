package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"thermod/pkg/logger"
)

type scriptResult struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

// ScriptActuator drives three external commands for on/off/status.
// A missing status command is allowed: status falls back to the
// cached last-commanded state, and an explicit switch_off is issued
// once at startup so the cache starts from a known state. Grounded on
// the teacher's lwtctrl bounded-retry idiom.
type ScriptActuator struct {
	onCmd, offCmd, statusCmd []string
	timeout                  time.Duration
	maxRetries               int
	retryDelay               time.Duration
	hasStatusCmd             bool

	mu     sync.Mutex
	cached bool
	log    *logger.Logger
}

func NewScriptActuator(onCmd, offCmd, statusCmd []string, timeout time.Duration, maxRetries int, retryDelay time.Duration) (*ScriptActuator, error) {
	if len(onCmd) == 0 || len(offCmd) == 0 {
		return nil, fmt.Errorf("actuator: switch_on and switch_off commands are required")
	}
	a := &ScriptActuator{
		onCmd:        onCmd,
		offCmd:       offCmd,
		statusCmd:    statusCmd,
		timeout:      timeout,
		maxRetries:   maxRetries,
		retryDelay:   retryDelay,
		hasStatusCmd: len(statusCmd) > 0,
		log:          logger.New("ScriptActuator"),
	}
	// missing status script: force off at startup so the cache is known-good
	if !a.hasStatusCmd {
		if err := a.SwitchOff(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *ScriptActuator) SwitchOn() error {
	if err := a.runWithRetry("switch_on", a.onCmd); err != nil {
		return err
	}
	a.mu.Lock()
	a.cached = true
	a.mu.Unlock()
	return nil
}

func (a *ScriptActuator) SwitchOff() error {
	if err := a.runWithRetry("switch_off", a.offCmd); err != nil {
		return err
	}
	a.mu.Lock()
	a.cached = false
	a.mu.Unlock()
	return nil
}

func (a *ScriptActuator) IsOn() (bool, error) {
	if !a.hasStatusCmd {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.cached, nil
	}

	result, err := a.run(a.statusCmd)
	if err != nil {
		return false, newError("status", err)
	}
	if !result.Success {
		msg := "status script reported failure"
		if result.Error != nil {
			msg = *result.Error
		}
		return false, newError("status", fmt.Errorf("%s", msg))
	}
	return true, nil
}

func (a *ScriptActuator) runWithRetry(op string, cmd []string) error {
	var lastErr error
	for i := 0; i < a.maxRetries; i++ {
		result, err := a.run(cmd)
		if err == nil && result.Success {
			return nil
		}
		if err == nil && !result.Success {
			msg := "script reported failure"
			if result.Error != nil {
				msg = *result.Error
			}
			err = fmt.Errorf("%s", msg)
		}
		lastErr = err
		a.log.Error("%s attempt %d/%d: %v", op, i+1, a.maxRetries, err)
		time.Sleep(a.retryDelay)
	}
	return newError(op, fmt.Errorf("failed after %d attempts: %w", a.maxRetries, lastErr))
}

func (a *ScriptActuator) run(cmd []string) (*scriptResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w (stderr: %s)", cmd[0], err, stderr.String())
	}

	var result scriptResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("decoding %s output: %w", cmd[0], err)
	}
	return &result, nil
}

func (a *ScriptActuator) Close() error { return nil }
