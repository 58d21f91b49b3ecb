package tuner

import "p600/core"

// Table maps (octave marker, tunable CV) to a control code. It is the only
// state that outlives a calibration pass.
type Table [OctaveCount][core.TunableCVCount]uint16

// Init loads the placeholder linear ramps used until a pass completes.
func (t *Table) Init(cfg *Config) {
	for m := 0; m < OctaveCount; m++ {
		for v := 0; v < core.VoiceCount; v++ {
			osc := rampCode(&cfg.Osc, m)
			t[m][core.CVOsc1A+core.CV(v)] = osc
			t[m][core.CVOsc1B+core.CV(v)] = osc
			t[m][core.CVFil1+core.CV(v)] = rampCode(&cfg.Filter, m)
		}
	}
}

func rampCode(f *FamilyConfig, marker int) uint16 {
	return clampCode(int64(f.InitOffset) + int64(marker)*65536/int64(f.InitDivisor))
}

// Column returns every marker's code for cv.
func (t *Table) Column(cv core.CV) [OctaveCount]uint16 {
	var col [OctaveCount]uint16
	for m := range col {
		col[m] = t[m][cv]
	}
	return col
}

// CodeForNote maps a note number plus a fraction (interp/256) of the way to
// the next note onto a control code for cv. Octaves past the table continue
// the slope of its last two markers. It has no side effects.
func (t *Table) CodeForNote(note, interp uint8, cv core.CV) uint16 {
	if !cv.Tunable() {
		return 0
	}

	loOct := int(note) / 12
	lo := t.octaveCode(loOct, cv)
	hi := t.octaveCode(loOct+1, cv)

	// Q16 fraction of an octave
	semitone := ((int64(note)%12)<<16 + int64(interp)<<8) / 12

	return clampCode(lo + (semitone*(hi-lo))>>16)
}

func (t *Table) octaveCode(oct int, cv core.CV) int64 {
	if oct < OctaveCount {
		return int64(t[oct][cv])
	}
	last := int64(t[OctaveCount-1][cv])
	prev := int64(t[OctaveCount-2][cv])
	return int64(clampCode(last + int64(oct-OctaveCount+1)*(last-prev)))
}

func clampCode(v int64) uint16 {
	if v < 0 {
		return 0
	}
	if v > core.MaxCode {
		return core.MaxCode
	}
	return uint16(v)
}
