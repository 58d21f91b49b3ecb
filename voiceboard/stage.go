package voiceboard

import (
	"math"

	"p600/core"
)

// Stage models one analog VCO, or one VCF driven into self-oscillation,
// as an exponential converter: each PerOctave codes double the frequency.
type Stage struct {
	BaseCode  float64 // code at which the stage sounds the lowest C
	PerOctave float64 // codes per octave

	// Dead stages never produce an observable signal.
	Dead bool
	// StallAbove, when non-zero, silences the stage above this code.
	StallAbove uint16
}

// Hz returns the stage's frequency at code, 0 when silent.
func (st *Stage) Hz(lowestHz float64, code uint16) float64 {
	if st.Dead || (st.StallAbove != 0 && code > st.StallAbove) {
		return 0
	}
	return lowestHz * math.Exp2((float64(code)-st.BaseCode)/st.PerOctave)
}

// CodeForHz inverts Hz.
func (st *Stage) CodeForHz(lowestHz, hz float64) float64 {
	return st.BaseCode + st.PerOctave*math.Log2(hz/lowestHz)
}

// Nominal converter scales before drift.
const (
	oscBaseCode     = 3000
	oscPerOctave    = 5800
	filterBaseCode  = 9000
	filterPerOctave = 3000
)

// driftStages gives every stage its nominal scale off by up to ±drift.
func (b *Board) driftStages(drift float64) {
	for cv := core.CV(0); int(cv) < core.TunableCVCount; cv++ {
		base, per := float64(oscBaseCode), float64(oscPerOctave)
		if cv >= core.CVFil1 {
			base, per = filterBaseCode, filterPerOctave
		}
		b.Stages[cv] = Stage{
			BaseCode:  base * (1 + drift*b.uniform()),
			PerOctave: per * (1 + drift*b.uniform()),
		}
	}
}

func (b *Board) uniform() float64 {
	return 2*b.rng.Float64() - 1
}

// source is the signal currently reaching the synchronizer input: rising
// edges at anchor + k*period.
type source struct {
	stage  int // tunable CV index, -1 when nothing is audible
	code   uint16
	period float64
	anchor float64
}

// audibleStage applies the voice board's routing: an oscillator is heard
// through its voice amp when its mixer volume is up and the other one is
// down, a filter when both volumes are down and resonance is at the top.
func (b *Board) audibleStage() int {
	volA := b.held[core.CVVolA] >= 0x8000
	volB := b.held[core.CVVolB] >= 0x8000
	resonant := b.held[core.CVResonance] >= 0xC000

	for v := 0; v < core.VoiceCount; v++ {
		if b.held[core.CVAmp1+core.CV(v)] < 0x8000 {
			continue
		}
		switch {
		case volA && !volB:
			return int(core.CVOsc1A) + v
		case volB && !volA:
			return int(core.CVOsc1B) + v
		case !volA && !volB && resonant:
			return int(core.CVFil1) + v
		}
	}
	return -1
}

// reroute recomputes the audible signal after a held CV changed. A stage
// keeps its edge phase when only its code moves.
func (b *Board) reroute() {
	stage := b.audibleStage()
	var code uint16
	if stage >= 0 {
		code = b.held[stage]
	}
	if stage == b.src.stage && code == b.src.code {
		return
	}

	now := float64(b.now)
	hz := 0.0
	if stage >= 0 {
		hz = b.Stages[stage].Hz(b.cfg.LowestHz, code)
	}
	if hz <= 0 {
		b.src = source{stage: -1}
		return
	}

	period := b.cfg.TickRate / hz * (1 + b.cfg.Jitter*b.rng.NormFloat64())
	anchor := now + b.rng.Float64()*period
	if stage == b.src.stage && b.src.period > 0 {
		anchor = b.lastEdge(now)
	}
	b.src = source{stage: stage, code: code, period: period, anchor: anchor}
}

func (b *Board) lastEdge(t float64) float64 {
	return b.src.anchor + math.Floor((t-b.src.anchor)/b.src.period)*b.src.period
}

// nextEdge returns the first rising edge strictly after t.
func (b *Board) nextEdge(t float64) float64 {
	return b.lastEdge(t) + b.src.period
}
