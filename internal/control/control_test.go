package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"thermod/internal/actuator"
	"thermod/internal/thermometer"
	"thermod/internal/timetable"
	"thermod/pkg/eventbus"
	"thermod/pkg/history"
)

func fullWeek(cell []timetable.QuarterValue) timetable.Program {
	p := timetable.Program{}
	for _, day := range timetable.Weekdays {
		sched := timetable.DaySchedule{}
		for _, h := range timetable.Hours() {
			sched[h] = cell
		}
		p[day] = sched
	}
	return p
}

func baseSettings() timetable.Settings {
	return timetable.Settings{
		Temperatures: map[timetable.TempName]float64{timetable.TMax: 21, timetable.TMin: 18, timetable.T0: 7},
		Differential: 0.5,
		Mode:         timetable.ModeOn,
		HVACMode:     timetable.Heating,
		Inertia:      1,
		Program: fullWeek([]timetable.QuarterValue{
			{IsName: true, Name: timetable.TMin},
			{IsName: true, Name: timetable.TMin},
			{IsName: true, Name: timetable.TMax},
			{IsName: true, Name: timetable.TMax},
		}),
	}
}

// newTestCycle wires a Cycle around fakes and a real timetable backed by
// a temp file, so tests exercise the same code path socket.go drives.
func newTestCycle(t *testing.T) (*Cycle, *thermometer.Fake, *actuator.Fake, *timetable.Timetable, *eventbus.Bus) {
	t.Helper()
	dir := t.TempDir()

	hist, err := history.Open(dir)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	tt := timetable.New(dir+"/timetable.json", hist, nil)
	s := baseSettings()
	if err := tt.SetSettings(s); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	source := thermometer.NewFake(19.0)
	act := actuator.NewFake()
	bus := eventbus.New()

	lock := newMasterLock()
	cycle := NewCycle(lock, tt, source, act, hist, bus, time.Second, time.Second, nil, nil)

	return cycle, source, act, tt, bus
}

func TestCycleStepSwitchesActuatorOn(t *testing.T) {
	cycle, source, act, _, bus := newTestCycle(t)
	source.Set(10.0) // well below tmax=21-0.5 -> should switch on

	cycle.Lock().Lock()
	cycle.step(context.Background())
	cycle.Lock().Unlock()

	on, err := act.IsOn()
	if err != nil {
		t.Fatalf("IsOn: %v", err)
	}
	if !on {
		t.Fatalf("expected actuator ON after a cold reading")
	}

	last, ok := bus.GetLast(statusTopic)
	if !ok {
		t.Fatalf("expected a status snapshot to have been published")
	}
	status := last.(timetable.Status)
	if !status.ActuatorOn {
		t.Fatalf("published status should report actuator on")
	}
}

func TestCycleStepSwitchesActuatorOff(t *testing.T) {
	cycle, source, act, _, _ := newTestCycle(t)
	act.SwitchOn()
	source.Set(30.0) // well above target -> should switch off

	cycle.Lock().Lock()
	cycle.step(context.Background())
	cycle.Lock().Unlock()

	on, _ := act.IsOn()
	if on {
		t.Fatalf("expected actuator OFF after a hot reading")
	}
}

func TestCycleStepRecordsErrorStatusOnThermometerFailure(t *testing.T) {
	cycle, source, _, _, bus := newTestCycle(t)
	source.SetError(context.DeadlineExceeded)

	cycle.Lock().Lock()
	sleep := cycle.step(context.Background())
	cycle.Lock().Unlock()

	if sleep != cycle.sleepOnError {
		t.Fatalf("expected the error backoff interval, got %v", sleep)
	}
	last, ok := bus.GetLast(statusTopic)
	if !ok {
		t.Fatalf("expected an error status to be published")
	}
	if last.(timetable.Status).Error == "" {
		t.Fatalf("expected status.Error to be set")
	}
}

func TestCycleShutdownForcesActuatorOff(t *testing.T) {
	cycle, source, act, _, _ := newTestCycle(t)
	act.SwitchOn()

	cycle.shutdown()

	on, _ := act.IsOn()
	if on {
		t.Fatalf("expected shutdown to force the actuator off")
	}
	if cycle.enabled {
		t.Fatalf("expected shutdown to clear enabled")
	}
	_ = source
}

func TestSocketGetSettingsReturnsCurrentDocument(t *testing.T) {
	cycle, _, _, tt, bus := newTestCycle(t)
	sock := NewSocket(cycle, tt, bus, "test")

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	w := httptest.NewRecorder()
	sock.handleSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got timetable.Settings
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Mode != timetable.ModeOn {
		t.Fatalf("expected mode %q, got %q", timetable.ModeOn, got.Mode)
	}
}

func TestSocketPatchSettingsAppliesModeAndNotifies(t *testing.T) {
	cycle, _, _, tt, bus := newTestCycle(t)
	sock := NewSocket(cycle, tt, bus, "test")

	body := strings.NewReader(`{"mode":"off"}`)
	req := httptest.NewRequest(http.MethodPost, "/settings", body)
	w := httptest.NewRecorder()
	sock.handleSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if tt.Settings().Mode != timetable.ModeOff {
		t.Fatalf("expected mode=off to have been applied, got %q", tt.Settings().Mode)
	}
}

func TestSocketPatchSettingsRejectsInvalidValue(t *testing.T) {
	cycle, _, _, tt, bus := newTestCycle(t)
	sock := NewSocket(cycle, tt, bus, "test")

	body := strings.NewReader(`{"mode":"not-a-real-mode"}`)
	req := httptest.NewRequest(http.MethodPost, "/settings", body)
	w := httptest.NewRecorder()
	sock.handleSettings(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an invalid mode, got %d", w.Code)
	}
}

func TestSocketSettingsReturnsConflictWhenLockHeldElsewhere(t *testing.T) {
	cycle, _, _, tt, bus := newTestCycle(t)
	sock := NewSocket(cycle, tt, bus, "test")

	lock := cycle.Lock()
	lock.Lock() // simulate a concurrent holder and never release during the request

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	w := httptest.NewRecorder()
	sock.handleSettings(w, req)
	lock.Unlock()

	if w.Code != http.StatusLocked {
		t.Fatalf("expected 423 Locked, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSocketStatusFallsBackWhenNothingPublishedYet(t *testing.T) {
	cycle, _, _, tt, bus := newTestCycle(t)
	sock := NewSocket(cycle, tt, bus, "test")

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	sock.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got timetable.Status
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Timestamp == "" {
		t.Fatalf("expected a fallback timestamp")
	}
}
