package timetable

import "fmt"

// validateSemantics checks meaning, not shape: week completeness, named
// temperature references, and value ranges. Schema validation has
// already guaranteed the document's structure by the time this runs.
func validateSemantics(s *Settings) error {
	if s.Differential < 0 || s.Differential > 1 {
		return fmt.Errorf("differential %v out of range [0, 1]", s.Differential)
	}
	if !s.Mode.valid() {
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	if !s.HVACMode.valid() {
		return fmt.Errorf("unknown hvac_mode %q", s.HVACMode)
	}
	if !s.Inertia.valid() {
		return fmt.Errorf("inertia %d not in {1, 2, 3}", s.Inertia)
	}
	if s.GraceTime != nil && *s.GraceTime < 0 {
		return fmt.Errorf("grace_time %v must be non-negative or null", *s.GraceTime)
	}
	for _, n := range []TempName{TMax, TMin, T0} {
		if _, ok := s.Temperatures[n]; !ok {
			return fmt.Errorf("missing named temperature %q", n)
		}
	}

	for _, day := range Weekdays {
		sched, ok := s.Program[day]
		if !ok {
			return fmt.Errorf("program missing day %q", day)
		}
		for _, hour := range Hours() {
			quarters, ok := sched[hour]
			if !ok {
				return fmt.Errorf("day %q missing hour %q", day, hour)
			}
			if len(quarters) != 4 {
				return fmt.Errorf("day %q hour %q: expected 4 quarters, got %d", day, hour, len(quarters))
			}
			for i, q := range quarters {
				if q.IsName && !q.Name.valid() {
					return fmt.Errorf("day %q hour %q quarter %d: unknown temperature name %q", day, hour, i, q.Name)
				}
			}
		}
		if len(sched) != 24 {
			return fmt.Errorf("day %q: expected exactly 24 hours, got %d", day, len(sched))
		}
	}
	if len(s.Program) != 7 {
		return fmt.Errorf("program must cover exactly 7 weekdays, got %d", len(s.Program))
	}

	return nil
}
