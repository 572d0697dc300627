package thermometer

import (
	"context"
	"math"
	"testing"
	"time"

	"thermod/internal/timetable"
)

func TestSimilarityCheckerScenarioS5(t *testing.T) {
	fake := NewFake(0)
	checker := NewSimilarityChecker(fake, 4, 1.0)

	seed := []float64{19.8, 20.0, 20.1, 19.9}
	for _, v := range seed {
		fake.Set(v)
		if _, err := checker.Read(context.Background()); err != nil {
			t.Fatalf("seeding reading %v: unexpected error: %v", v, err)
		}
	}

	fake.Set(30.0)
	if _, err := checker.Read(context.Background()); err == nil {
		t.Fatalf("expected reading 30.0 to be rejected against median 19.95")
	}

	fake.Set(20.4)
	v, err := checker.Read(context.Background())
	if err != nil {
		t.Fatalf("expected reading 20.4 to be accepted, got error: %v", err)
	}
	if v != 20.4 {
		t.Fatalf("expected accepted value 20.4, got %v", v)
	}
}

func TestSimilarityCheckerRejectedReadingsDoNotAlterBuffer(t *testing.T) {
	fake := NewFake(10.0)
	checker := NewSimilarityChecker(fake, 3, 0.5)

	for i := 0; i < 3; i++ {
		if _, err := checker.Read(context.Background()); err != nil {
			t.Fatalf("seeding: unexpected error: %v", err)
		}
	}

	fake.Set(100.0)
	if _, err := checker.Read(context.Background()); err == nil {
		t.Fatalf("expected rejection")
	}

	fake.Set(10.2)
	if _, err := checker.Read(context.Background()); err != nil {
		t.Fatalf("buffer should be unaffected by the rejected reading: %v", err)
	}
}

func TestAveragingScenarioS6(t *testing.T) {
	fake := NewFake(20.0)
	avg, err := NewAveragingTask(fake, 10*time.Millisecond, 200*time.Millisecond, 0.33, time.Second)
	if err != nil {
		t.Fatalf("NewAveragingTask: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go avg.Run(ctx)

	// nineteen equal samples, one outlier; let the worker collect >= 19 points
	time.Sleep(150 * time.Millisecond)
	fake.Set(30.0)
	time.Sleep(10 * time.Millisecond)
	fake.Set(20.0)
	time.Sleep(30 * time.Millisecond)

	v, err := avg.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if math.Abs(v-20.0) > 0.5 {
		t.Fatalf("expected averaged value near 20.0 with outlier trimmed, got %v", v)
	}
}

func TestAveragingNoSamplesYet(t *testing.T) {
	fake := NewFake(20.0)
	avg, err := NewAveragingTask(fake, time.Second, 2*time.Second, 0.2, time.Second)
	if err != nil {
		t.Fatalf("NewAveragingTask: %v", err)
	}
	if _, err := avg.Read(context.Background()); err == nil {
		t.Fatalf("expected 'no samples yet' error before the worker has run")
	}
}

func TestAveragingConstructorValidation(t *testing.T) {
	fake := NewFake(20.0)
	if _, err := NewAveragingTask(fake, time.Second, time.Second, 0.2, time.Second); err == nil {
		t.Fatalf("expected error: avgtime must be >= 2x avgint")
	}
	if _, err := NewAveragingTask(fake, time.Second, 10*time.Second, 1.0, time.Second); err == nil {
		t.Fatalf("expected error: avgskip must be in [0, 1)")
	}
}

func TestScaleConversionRoundTrip(t *testing.T) {
	for c := -40.0; c <= 100.0; c += 0.37 {
		f := timetable.Fahrenheit.FromCelsius(c)
		back := timetable.Fahrenheit.ToCelsius(f)
		if math.Abs(back-c) > 1e-9 {
			t.Fatalf("round trip failed for %v: got %v", c, back)
		}
	}
}

func TestScaleAdapterNoOpSameScale(t *testing.T) {
	fake := NewFake(21.5)
	adapter := NewScaleAdapter(fake, timetable.Celsius, timetable.Celsius)
	v, err := adapter.Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 21.5 {
		t.Fatalf("expected no-op pass-through, got %v", v)
	}
}

func TestCalibratorIdentityWhenEmpty(t *testing.T) {
	cal, err := NewCalibrator(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cal.Apply(17.3); got != 17.3 {
		t.Fatalf("expected identity transform, got %v", got)
	}
}

func TestCalibratorInterpolatesAndExtrapolates(t *testing.T) {
	cal, err := NewCalibrator([]float64{0, 10, 20}, []float64{1, 11, 19})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cal.Apply(5); math.Abs(got-6) > 1e-9 {
		t.Fatalf("expected interpolated 6, got %v", got)
	}
	if got := cal.Apply(-10); math.Abs(got-(-9)) > 1e-9 {
		t.Fatalf("expected extrapolated -9, got %v", got)
	}
}
