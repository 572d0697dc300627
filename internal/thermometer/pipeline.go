package thermometer

import (
	"context"
	"fmt"
	"time"

	"thermod/internal/config"
	"thermod/internal/timetable"
	"thermod/pkg/modbus"
)

// Pipeline is the fully assembled Source -> ScaleAdapter ->
// SimilarityChecker -> AveragingTask chain, plus the background
// averaging worker that must be started alongside it.
type Pipeline struct {
	Source    Source
	Averaging *AveragingTask
}

// Build assembles the pipeline described by cfg, wiring the configured
// source variant through ScaleAdapter -> SimilarityChecker ->
// AveragingTask, per the fixed decorator ordering.
func Build(cfg config.ThermometerConfig, workingScale timetable.Scale) (*Pipeline, error) {
	cal, err := NewCalibrator(cfg.Calibration.TRaw, cfg.Calibration.TRef)
	if err != nil {
		return nil, fmt.Errorf("thermometer pipeline: %w", err)
	}

	var src Source
	var sourceScale timetable.Scale = timetable.Celsius

	switch cfg.Variant {
	case "script":
		src = NewScriptSource(
			cfg.Script.Command,
			cfg.Script.Args,
			time.Duration(cfg.Script.TimeoutSeconds)*time.Second,
			cal,
		)

	case "analogboard":
		mc, err := modbus.LoadConfig(cfg.AnalogBoard.RegisterFile)
		if err != nil {
			return nil, fmt.Errorf("thermometer pipeline: %w", err)
		}
		client := modbus.NewClient(context.Background(), mc)
		src = NewAnalogBoard(client, cfg.AnalogBoard.Registers, cfg.AnalogBoard.MaxStdDev, cal)

	case "onewire":
		src = NewOneWire(
			cfg.OneWire.DevicePaths,
			cfg.OneWire.MaxStdDev,
			time.Duration(cfg.OneWire.TimeoutSeconds)*time.Second,
			cal,
		)

	case "fake":
		src = NewFake(cfg.Fake.InitialTemperature)

	default:
		return nil, fmt.Errorf("thermometer pipeline: unknown source variant %q", cfg.Variant)
	}

	scaled := NewScaleAdapter(src, sourceScale, workingScale)

	similarityN := cfg.Similarity.BufferSize
	if similarityN <= 0 {
		similarityN = 1
	}
	similar := NewSimilarityChecker(scaled, similarityN, cfg.Similarity.Delta)

	avgInt := time.Duration(cfg.Averaging.IntervalSeconds) * time.Second
	avgWin := time.Duration(cfg.Averaging.WindowSeconds) * time.Second
	sleepOnErr := time.Duration(cfg.Averaging.SleepOnErrorSeconds) * time.Second

	avg, err := NewAveragingTask(similar, avgInt, avgWin, cfg.Averaging.Skip, sleepOnErr)
	if err != nil {
		return nil, fmt.Errorf("thermometer pipeline: %w", err)
	}

	return &Pipeline{Source: avg, Averaging: avg}, nil
}
