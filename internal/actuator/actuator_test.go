package actuator

import (
	"errors"
	"testing"
	"time"
)

func TestFakeActuatorStatusReflectsLastCommand(t *testing.T) {
	a := NewFake()

	if on, err := a.IsOn(); err != nil || on {
		t.Fatalf("expected initial state off, got on=%v err=%v", on, err)
	}

	if err := a.SwitchOn(); err != nil {
		t.Fatalf("SwitchOn: %v", err)
	}
	if on, err := a.IsOn(); err != nil || !on {
		t.Fatalf("expected on after SwitchOn, got on=%v err=%v", on, err)
	}

	if err := a.SwitchOff(); err != nil {
		t.Fatalf("SwitchOff: %v", err)
	}
	if on, err := a.IsOn(); err != nil || on {
		t.Fatalf("expected off after SwitchOff, got on=%v err=%v", on, err)
	}
}

func TestFakeActuatorFailedSwitchLeavesStatusUnchanged(t *testing.T) {
	a := NewFake()
	if err := a.SwitchOn(); err != nil {
		t.Fatalf("SwitchOn: %v", err)
	}

	a.SetSwitchOffError(errors.New("relay stuck"))
	if err := a.SwitchOff(); err == nil {
		t.Fatalf("expected SwitchOff to fail")
	}

	on, err := a.IsOn()
	if err != nil {
		t.Fatalf("IsOn: %v", err)
	}
	if !on {
		t.Fatalf("expected status to remain on after a failed switch_off")
	}
}

func TestScriptActuatorMissingStatusCachesAndForcesOffAtStartup(t *testing.T) {
	a, err := NewScriptActuator(
		[]string{"sh", "-c", `echo '{"success":true}'`},
		[]string{"sh", "-c", `echo '{"success":true}'`},
		nil,
		5*time.Second, 1, 0,
	)
	if err != nil {
		t.Fatalf("NewScriptActuator: %v", err)
	}

	on, err := a.IsOn()
	if err != nil {
		t.Fatalf("IsOn: %v", err)
	}
	if on {
		t.Fatalf("expected cached status to be off after the startup force-off")
	}
}

func TestScriptActuatorRequiresOnOffCommands(t *testing.T) {
	if _, err := NewScriptActuator(nil, []string{"true"}, nil, 0, 1, 0); err == nil {
		t.Fatalf("expected error when switch_on command is missing")
	}
}
