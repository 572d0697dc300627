package timetable

import (
	"encoding/json"
	"fmt"
	"math"
)

// Scale is the degree scale a temperature value is expressed in.
type Scale string

const (
	Celsius    Scale = "celsius"
	Fahrenheit Scale = "fahrenheit"
)

// ToCelsius converts x, expressed in s, to celsius.
func (s Scale) ToCelsius(x float64) float64 {
	if s == Fahrenheit {
		return (x - 32) * 5 / 9
	}
	return x
}

// FromCelsius converts a celsius value x into s.
func (s Scale) FromCelsius(x float64) float64 {
	if s == Fahrenheit {
		return x*9/5 + 32
	}
	return x
}

// TempName names one of the three configured comfort temperatures.
type TempName string

const (
	TMax TempName = "tmax"
	TMin TempName = "tmin"
	T0   TempName = "t0"
)

func (n TempName) valid() bool {
	switch n {
	case TMax, TMin, T0:
		return true
	}
	return false
}

// Mode is the user-facing operating mode.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeOn   Mode = "on"
	ModeOff  Mode = "off"
	ModeTMax Mode = "tmax"
	ModeTMin Mode = "tmin"
	ModeT0   Mode = "t0"
)

func (m Mode) valid() bool {
	switch m {
	case ModeAuto, ModeOn, ModeOff, ModeTMax, ModeTMin, ModeT0:
		return true
	}
	return false
}

// HVACMode selects the sign of the hysteresis comparison.
type HVACMode string

const (
	Heating HVACMode = "heating"
	Cooling HVACMode = "cooling"
)

func (h HVACMode) valid() bool {
	return h == Heating || h == Cooling
}

// Inertia is the hysteresis strategy index.
type Inertia int

func (i Inertia) valid() bool {
	return i == 1 || i == 2 || i == 3
}

var Weekdays = [7]string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// Hours returns the 24 canonical hour keys "h00".."h23".
func Hours() []string {
	hs := make([]string, 24)
	for i := 0; i < 24; i++ {
		hs[i] = fmt.Sprintf("h%02d", i)
	}
	return hs
}

// QuarterValue is either a named temperature reference or a literal value,
// mirroring the wire format's `q` union (string | number).
type QuarterValue struct {
	IsName  bool
	Name    TempName
	Literal float64
}

func (q QuarterValue) MarshalJSON() ([]byte, error) {
	if q.IsName {
		return json.Marshal(string(q.Name))
	}
	return json.Marshal(q.Literal)
}

func (q *QuarterValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		q.IsName = true
		q.Name = TempName(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		q.IsName = false
		q.Literal = f
		return nil
	}
	return fmt.Errorf("quarter value must be a temperature name or a number")
}

// DaySchedule maps hour keys ("h00".."h23") to their four quarters.
type DaySchedule map[string][]QuarterValue

// Program is the full weekly schedule, keyed by weekday name.
type Program map[string]DaySchedule

// Settings is the persisted timetable document (spec.md §3/§6).
type Settings struct {
	Temperatures map[TempName]float64 `json:"temperatures"`
	Differential float64               `json:"differential"`
	GraceTime    *float64              `json:"grace_time"`
	Mode         Mode                  `json:"mode"`
	HVACMode     HVACMode              `json:"hvac_mode"`
	Inertia      Inertia               `json:"inertia"`
	Program      Program               `json:"timetable"`
}

// Status is the immutable per-cycle snapshot emitted to monitors.
type Status struct {
	Timestamp          string   `json:"timestamp"`
	Mode               Mode     `json:"mode"`
	HVACMode           HVACMode `json:"hvac_mode"`
	CurrentTemperature float64  `json:"current_temperature"`
	TargetTemperature  float64  `json:"target_temperature"`
	ActuatorOn         bool     `json:"actuator_status"`
	Error              string   `json:"error,omitempty"`
}

// MarshalJSON overrides TargetTemperature's encoding: ModeOff (and a
// cooling-off direction) resolve it to +/-Inf per offTarget, which
// encoding/json cannot represent. Such values encode as null instead
// of failing the whole snapshot.
func (s Status) MarshalJSON() ([]byte, error) {
	type alias Status
	out := struct {
		alias
		TargetTemperature any `json:"target_temperature"`
	}{alias: alias(s), TargetTemperature: s.TargetTemperature}

	if math.IsInf(s.TargetTemperature, 0) || math.IsNaN(s.TargetTemperature) {
		out.TargetTemperature = nil
	}
	return json.Marshal(out)
}
