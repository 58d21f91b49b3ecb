package tuner

import (
	"math"

	"p600/core"
)

// TargetPeriod returns the period of marker's C in reference ticks.
func TargetPeriod(cfg *Config, marker int) float64 {
	return cfg.TickRate / (cfg.LowestHz * math.Ldexp(1, marker))
}

// TargetPeriodQ8 returns TargetPeriod in ticks/256, truncated. A whole
// number of Q8 ticks exceeds the target exactly when it exceeds this value.
func TargetPeriodQ8(cfg *Config, marker int) uint64 {
	return uint64(TargetPeriod(cfg, marker) * 256)
}

// SearchMarker finds the code that makes cv oscillate at marker's C and
// commits it to the table. Codes at or below the code of lowestNote are
// never applied. Each probe averages 2^(precision+marker) cycles.
func (s *Session) SearchMarker(cv core.CV, marker int, lowestNote uint8, precision int) error {
	if !cv.Tunable() || marker < 0 || marker >= OctaveCount {
		return ErrBadMarkers
	}
	s.meter.Reset()

	target := TargetPeriodQ8(&s.cfg, marker)
	guard := s.table.CodeForNote(lowestNote, 0, cv)
	falls := s.cfg.Family(FamilyOf(cv)).PeriodFallsWithCode

	shift := precision + marker
	if shift < 0 {
		shift = 0
	}
	cycles := 1 << shift

	// 16-bit arithmetic: the first step wraps full scale to mid scale
	estimate := uint16(core.MaxCode)
	step := uint16(0x8000)

	for i := 0; i < s.cfg.SearchBits; i++ {
		// a code at or below the guard counts as an endless period: too low,
		// so the estimate rises
		raise := true

		if estimate > guard {
			s.cvs.SetCV(cv, estimate, false)

			ticks, err := s.measure(cycles)
			if err != nil {
				chErr := &ChannelError{CV: cv, Marker: marker, Err: err}
				if tc, ok := s.meter.(timeoutCounter); ok {
					chErr.Timeouts = tc.Timeouts()
				}
				return chErr
			}
			period := uint64(ticks) << 8 >> shift
			core.RecordEvent(core.EvtMeasure, cv, uint32(estimate), uint32(period))
			raise = (period > target) == falls
		}

		if raise {
			estimate += step
		} else {
			estimate -= step
		}
		step >>= 1
	}

	s.table[marker][cv] = estimate
	core.RecordEvent(core.EvtCommit, cv, uint32(marker), uint32(estimate))
	return nil
}

// measure brackets one meter call the way the CV refresh expects: a full
// update, the channel's S&H closed while measuring, reopened afterwards.
func (s *Session) measure(cycles int) (uint32, error) {
	s.cvs.Update()
	s.cvs.MaintainCV(s.current, false)

	ticks, err := s.meter.MeasurePeriod(cycles)
	if err != nil {
		return 0, err
	}

	s.cvs.MaintainCV(s.current, true)
	return ticks, nil
}
