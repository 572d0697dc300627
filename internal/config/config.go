// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"thermod/pkg/eventbus"
)

// Config is the daemon's own configuration, as distinct from the
// timetable document it drives. Loaded with viper (file + environment
// variable overrides), following the retrieved rtk_controller
// example's layering.
type Config struct {
	// Enabled lets an operator ship a config file without running the
	// daemon (e.g. during a maintenance window); the entrypoint exits 6
	// immediately rather than starting any component.
	Enabled bool `mapstructure:"enabled"`

	WorkingScale  string `mapstructure:"working_scale"`
	Interval      int    `mapstructure:"interval"`
	SleepOnError  int    `mapstructure:"sleep_on_error"`

	Socket SocketConfig `mapstructure:"socket"`

	Thermometer ThermometerConfig `mapstructure:"thermometer"`
	Actuator    ActuatorConfig    `mapstructure:"actuator"`

	TimetablePath string `mapstructure:"timetable_path"`
	DataDir       string `mapstructure:"data_dir"`
	Debug         bool   `mapstructure:"debug"`

	// not loaded from file, wired in after construction
	EventBus *eventbus.Bus
}

type SocketConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ThermometerConfig selects one source Variant and carries the
// settings for every variant; only the selected one is consulted.
type ThermometerConfig struct {
	Variant     string                  `mapstructure:"variant"` // script|analogboard|onewire|fake
	Script      ScriptThermometerConfig `mapstructure:"script"`
	AnalogBoard AnalogBoardConfig       `mapstructure:"analogboard"`
	OneWire     OneWireConfig           `mapstructure:"onewire"`
	Fake        FakeThermometerConfig   `mapstructure:"fake"`

	Calibration CalibrationConfig `mapstructure:"calibration"`
	Similarity  SimilarityConfig  `mapstructure:"similarity"`
	Averaging   AveragingConfig   `mapstructure:"averaging"`
}

type ScriptThermometerConfig struct {
	Command        string   `mapstructure:"command"`
	Args           []string `mapstructure:"args"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// AnalogBoardConfig points at the modbus register file that itself
// carries the host/port/slave-id (pkg/modbus.LoadConfig), plus the
// named registers to read and poll for disagreement.
type AnalogBoardConfig struct {
	RegisterFile string   `mapstructure:"register_file"`
	Registers    []string `mapstructure:"registers"`
	MaxStdDev    float64  `mapstructure:"max_stddev"`
}

type OneWireConfig struct {
	DevicePaths    []string `mapstructure:"device_paths"`
	MaxStdDev      float64  `mapstructure:"max_stddev"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

type FakeThermometerConfig struct {
	InitialTemperature float64 `mapstructure:"initial_temperature"`
}

type CalibrationConfig struct {
	TRaw []float64 `mapstructure:"t_raw"`
	TRef []float64 `mapstructure:"t_ref"`
}

type SimilarityConfig struct {
	BufferSize int     `mapstructure:"buffer_size"`
	Delta      float64 `mapstructure:"delta"`
}

type AveragingConfig struct {
	IntervalSeconds     int     `mapstructure:"interval_seconds"`
	WindowSeconds       int     `mapstructure:"window_seconds"`
	Skip                float64 `mapstructure:"skip"`
	SleepOnErrorSeconds int     `mapstructure:"sleep_on_error_seconds"`
}

// ActuatorConfig selects one Variant and carries the settings for both.
type ActuatorConfig struct {
	Variant string             `mapstructure:"variant"` // script|gpio|fake
	Script  ScriptActuatorConfig `mapstructure:"script"`
	GPIO    GPIOActuatorConfig   `mapstructure:"gpio"`
}

type ScriptActuatorConfig struct {
	SwitchOnCommand  []string `mapstructure:"switch_on_command"`
	SwitchOffCommand []string `mapstructure:"switch_off_command"`
	StatusCommand    []string `mapstructure:"status_command"` // optional
	TimeoutSeconds   int      `mapstructure:"timeout_seconds"`
	MaxRetries       int      `mapstructure:"max_retries"`
	RetryDelayMillis int      `mapstructure:"retry_delay_millis"`
}

type GPIOActuatorConfig struct {
	Chip        string `mapstructure:"chip"`
	Lines       []int  `mapstructure:"lines"`
	ActiveLow   bool   `mapstructure:"active_low"`
}

func setDefaults() {
	viper.SetDefault("enabled", true)
	viper.SetDefault("working_scale", "celsius")
	viper.SetDefault("interval", 30)
	viper.SetDefault("sleep_on_error", 60)

	viper.SetDefault("socket.host", "127.0.0.1")
	viper.SetDefault("socket.port", 8080)

	viper.SetDefault("thermometer.variant", "fake")
	viper.SetDefault("thermometer.fake.initial_temperature", 20.0)
	viper.SetDefault("thermometer.script.timeout_seconds", 10)
	viper.SetDefault("thermometer.analogboard.max_stddev", 0.5)
	viper.SetDefault("thermometer.onewire.max_stddev", 0.5)
	viper.SetDefault("thermometer.onewire.timeout_seconds", 2)
	viper.SetDefault("thermometer.similarity.buffer_size", 5)
	viper.SetDefault("thermometer.similarity.delta", 2.0)
	viper.SetDefault("thermometer.averaging.interval_seconds", 10)
	viper.SetDefault("thermometer.averaging.window_seconds", 60)
	viper.SetDefault("thermometer.averaging.skip", 0.2)
	viper.SetDefault("thermometer.averaging.sleep_on_error_seconds", 60)

	viper.SetDefault("actuator.variant", "fake")
	viper.SetDefault("actuator.script.timeout_seconds", 10)
	viper.SetDefault("actuator.script.max_retries", 3)
	viper.SetDefault("actuator.script.retry_delay_millis", 500)
	viper.SetDefault("actuator.gpio.active_low", false)

	viper.SetDefault("timetable_path", "timetable.json")
	viper.SetDefault("data_dir", "data")
	viper.SetDefault("debug", false)
}

// LoadFile reads the daemon config from path, layering environment
// variable overrides (THERMOD_ prefix, nested keys via "_") on top.
func LoadFile(path string) (*Config, error) {
	setDefaults()

	viper.SetConfigFile(path)
	viper.SetEnvPrefix("THERMOD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &c, nil
}
