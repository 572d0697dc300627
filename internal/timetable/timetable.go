// Package timetable owns the weekly schedule and settings document: load
// and save, target-temperature resolution, and the hysteresis decision
// that drives the actuator.
package timetable

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"thermod/pkg/logger"
)

// GraceStore persists the actuator's last on-transition so grace_time
// survives a daemon restart. pkg/history.Store implements this.
type GraceStore interface {
	GetOnSince(key string) (time.Time, bool, error)
	SetOnSince(key string, t time.Time) error
	ClearOnSince(key string) error
}

const graceKey = "heating"

// Timetable is NOT internally synchronized: per spec.md §3's ownership
// rule, it is owned by the control cycle and shared with the socket
// under one external master lock. Callers must hold that lock around
// every method below; onChange is invoked (still under that lock) after
// every successful mutation so the cycle can react on its next turn.
type Timetable struct {
	settings Settings
	path     string
	grace    GraceStore
	onChange func()
	log      *logger.Logger
}

// New constructs an empty Timetable bound to path. Call Load before use.
func New(path string, grace GraceStore, onChange func()) *Timetable {
	return &Timetable{
		path:     path,
		grace:    grace,
		onChange: onChange,
		log:      logger.New("Timetable"),
	}
}

func (t *Timetable) notify() {
	if t.onChange != nil {
		t.onChange()
	}
}

// Settings returns a copy of the current settings document.
func (t *Timetable) Settings() Settings {
	return t.settings
}

// Load reads path, validates it (schema then semantics), and replaces
// the in-memory state atomically. On any failure prior state is
// preserved and a *Error describing the taxonomy kind is returned.
func (t *Timetable) Load() error {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newError(NotFound, t.path, err)
		}
		if errors.Is(err, os.ErrPermission) {
			return newError(PermissionDenied, t.path, err)
		}
		return newError(NotFound, t.path, err)
	}

	if err := validateSchema(raw); err != nil {
		return newError(InvalidSyntax, t.path, err)
	}

	var settings Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return newError(InvalidSyntax, t.path, err)
	}

	if err := validateSemantics(&settings); err != nil {
		return newError(InvalidContent, t.path, err)
	}

	t.settings = settings
	t.log.Info("loaded timetable from %s", t.path)
	return nil
}

// Reload re-reads the file at the path the Timetable was built with.
// Identical to Load; kept as a distinct name because SIGHUP and the
// fsnotify watcher call it for clarity at the call site.
func (t *Timetable) Reload() error {
	return t.Load()
}

// Save atomically (write-to-temp + rename) persists the current
// settings to path.
func (t *Timetable) Save() error {
	data, err := json.MarshalIndent(t.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal timetable: %w", err)
	}

	dir := filepath.Dir(t.path)
	tmp, err := os.CreateTemp(dir, ".timetable-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// quarterOf maps a local time to (weekday, hour, quarter) per spec.md §4.1.
func quarterOf(now time.Time) (day, hour string, quarter int) {
	day = Weekdays[(int(now.Weekday())+6)%7] // time.Sunday == 0; want monday-first
	hour = fmt.Sprintf("h%02d", now.Hour())
	quarter = now.Minute() / 15
	return
}

// resolveCell returns the real-valued target named or literal at (now),
// under the auto program.
func (t *Timetable) resolveCell(now time.Time) float64 {
	day, hour, quarter := quarterOf(now)
	q := t.settings.Program[day][hour][quarter]
	if !q.IsName {
		return q.Literal
	}
	return t.settings.Temperatures[q.Name]
}

// offTarget is the target value that always yields an OFF decision,
// signed by HVAC direction per spec.md §8 invariant 3.
func (t *Timetable) offTarget() float64 {
	if t.settings.HVACMode == Cooling {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// TargetTemperature resolves the real-valued target for now given the
// current mode. Never errors: well-formed state (guaranteed at load
// time) always resolves.
func (t *Timetable) TargetTemperature(now time.Time) float64 {
	switch t.settings.Mode {
	case ModeOff:
		return t.offTarget()
	case ModeOn:
		return t.settings.Temperatures[TMax]
	case ModeTMax:
		return t.settings.Temperatures[TMax]
	case ModeTMin:
		return t.settings.Temperatures[TMin]
	case ModeT0:
		return t.settings.Temperatures[T0]
	default: // ModeAuto
		return t.resolveCell(now)
	}
}

// thresholds returns the ON and OFF switching thresholds for the
// configured inertia and HVAC direction, per spec.md §3's table.
func thresholds(inertia Inertia, hvac HVACMode, target, d float64) (onAt, offAt float64) {
	if hvac == Heating {
		switch inertia {
		case 1:
			return target - d, target + d
		case 2:
			return target - 2*d, target
		default: // 3
			return target - 2*d, target - d
		}
	}
	// Cooling inverts the inequalities (mirrored around target).
	switch inertia {
	case 1:
		return target + d, target - d
	case 2:
		return target + 2*d, target
	default: // 3
		return target + 2*d, target + d
	}
}

// decide applies the hysteresis rule of spec.md §3; within the dead
// zone the prior actuator state is latched.
func decide(inertia Inertia, hvac HVACMode, target, d, current float64, prior bool) bool {
	onAt, offAt := thresholds(inertia, hvac, target, d)
	if hvac == Heating {
		switch {
		case current <= onAt:
			return true
		case current >= offAt:
			return false
		default:
			return prior
		}
	}
	switch {
	case current >= onAt:
		return true
	case current <= offAt:
		return false
	default:
		return prior
	}
}

// graceExceeded reports whether the actuator has been on continuously
// for at least the configured grace_time, per the heating-only decision
// recorded in DESIGN.md.
func (t *Timetable) graceExceeded(now time.Time, actuatorOn bool) bool {
	if t.settings.GraceTime == nil || t.settings.HVACMode != Heating || t.grace == nil {
		return false
	}
	if !actuatorOn {
		return false
	}
	since, ok, err := t.grace.GetOnSince(graceKey)
	if err != nil || !ok {
		return false
	}
	return now.Sub(since) >= time.Duration(*t.settings.GraceTime*float64(time.Second))
}

// ShouldBeOn applies the hysteresis + grace_time policy and returns the
// decision along with the Status snapshot it was derived from. now is
// passed explicitly (rather than read from time.Now internally) so the
// control cycle and tests can drive it deterministically.
func (t *Timetable) ShouldBeOn(now time.Time, currentTemp float64, actuatorOn bool) (bool, Status) {
	target := t.TargetTemperature(now)
	decision := decide(t.settings.Inertia, t.settings.HVACMode, target, t.settings.Differential, currentTemp, actuatorOn)

	if decision && t.graceExceeded(now, actuatorOn) {
		decision = false
	}

	if t.grace != nil {
		switch {
		case decision && !actuatorOn:
			// fresh OFF -> ON transition: start the grace clock.
			_ = t.grace.SetOnSince(graceKey, now)
		case !decision:
			_ = t.grace.ClearOnSince(graceKey)
		}
	}

	return decision, Status{
		Timestamp:          now.Format(time.RFC3339),
		Mode:               t.settings.Mode,
		HVACMode:           t.settings.HVACMode,
		CurrentTemperature: currentTemp,
		TargetTemperature:  target,
		ActuatorOn:         decision,
	}
}

// --- setters: each validates, mutates, persists, and notifies. ---

func (t *Timetable) SetMode(m Mode) error {
	if !m.valid() {
		return fmt.Errorf("unknown mode %q", m)
	}
	t.settings.Mode = m
	return t.commit()
}

func (t *Timetable) SetHVACMode(h HVACMode) error {
	if !h.valid() {
		return fmt.Errorf("unknown hvac_mode %q", h)
	}
	t.settings.HVACMode = h
	return t.commit()
}

func (t *Timetable) SetInertia(i Inertia) error {
	if !i.valid() {
		return fmt.Errorf("inertia %d not in {1, 2, 3}", i)
	}
	t.settings.Inertia = i
	return t.commit()
}

func (t *Timetable) SetDifferential(d float64) error {
	if d < 0 || d > 1 {
		return fmt.Errorf("differential %v out of range [0, 1]", d)
	}
	t.settings.Differential = d
	return t.commit()
}

func (t *Timetable) SetGraceTime(seconds *float64) error {
	if seconds != nil && *seconds < 0 {
		return fmt.Errorf("grace_time %v must be non-negative or null", *seconds)
	}
	t.settings.GraceTime = seconds
	return t.commit()
}

func (t *Timetable) SetTemperature(name TempName, value float64) error {
	if !name.valid() {
		return fmt.Errorf("unknown temperature name %q", name)
	}
	if t.settings.Temperatures == nil {
		t.settings.Temperatures = map[TempName]float64{}
	}
	t.settings.Temperatures[name] = value
	return t.commit()
}

// SetProgramCell replaces the four quarters for (day, hour).
func (t *Timetable) SetProgramCell(day, hour string, quarters []QuarterValue) error {
	if len(quarters) != 4 {
		return fmt.Errorf("expected 4 quarters, got %d", len(quarters))
	}
	for _, q := range quarters {
		if q.IsName && !q.Name.valid() {
			return fmt.Errorf("unknown temperature name %q", q.Name)
		}
	}
	valid := false
	for _, d := range Weekdays {
		if d == day {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown weekday %q", day)
	}
	validHour := false
	for _, h := range Hours() {
		if h == hour {
			validHour = true
			break
		}
	}
	if !validHour {
		return fmt.Errorf("unknown hour %q", hour)
	}
	if t.settings.Program == nil {
		t.settings.Program = Program{}
	}
	if t.settings.Program[day] == nil {
		t.settings.Program[day] = DaySchedule{}
	}
	t.settings.Program[day][hour] = quarters
	return t.commit()
}

// SetProgram replaces the whole weekly program at once, re-validating
// completeness and temperature-name references before committing.
func (t *Timetable) SetProgram(p Program) error {
	candidate := t.settings
	candidate.Program = p
	if err := validateSemantics(&candidate); err != nil {
		return err
	}
	t.settings = candidate
	return t.commit()
}

// SetSettings replaces the entire document, validating it as if freshly
// loaded (spec.md §4.5's POST /settings whole-`settings` case).
func (t *Timetable) SetSettings(s Settings) error {
	if err := validateSemantics(&s); err != nil {
		return err
	}
	t.settings = s
	return t.commit()
}

func (t *Timetable) commit() error {
	if err := t.Save(); err != nil {
		t.log.Error("failed to persist timetable: %v", err)
		return err
	}
	t.notify()
	return nil
}
