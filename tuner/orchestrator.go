package tuner

import (
	"errors"
	"strconv"

	"p600/core"
)

// ChannelResult records how one tunable CV fared in a pass.
type ChannelResult struct {
	CV       core.CV
	Measured int   // markers found by search, from the family's low marker up
	Err      error // *ChannelError when the search gave up, else nil
}

// Report summarises a calibration pass.
type Report struct {
	Channels [core.TunableCVCount]ChannelResult
}

// Untunable lists the channels whose search gave up.
func (r *Report) Untunable() []core.CV {
	var out []core.CV
	for _, c := range r.Channels {
		if c.Err != nil {
			out = append(out, c.CV)
		}
	}
	return out
}

// TuneSynth runs a full calibration pass over every oscillator and filter
// with interrupts masked, then saves the table. A channel that cannot be
// tuned keeps extrapolated entries and never stops the pass; the only error
// returned is the store's, and the table stays valid in memory either way.
func (s *Session) TuneSynth() (Report, error) {
	var report Report

	core.ClearEventRing()
	core.RecordEvent(core.EvtTuneStart, s.current, 0, 0)

	core.BlockInterrupts(func() {
		s.prepareBoard()
		s.tuneOscillators(&report)
		s.tuneFilters(&report)
		s.finish()
	})

	untunable := report.Untunable()
	core.RecordEvent(core.EvtTuneDone, s.current, uint32(len(untunable)), 0)
	if core.IsDebugEnabled() {
		core.DebugPrintln("[TUNE] pass done, untunable channels: " + strconv.Itoa(len(untunable)))
		core.DumpEventRing()
	}

	if s.store != nil {
		if err := s.store.Save(s.table); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *Session) prepareBoard() {
	s.display.Clear()
	s.display.SetLED(core.LEDTune, true, false)

	s.cvs.SetCV(core.CVMasterVol, 0, false)

	s.cvs.SetGate(core.GateASaw, true)
	s.cvs.SetGate(core.GateATri, false)
	s.cvs.SetGate(core.GateBSaw, true)
	s.cvs.SetGate(core.GateBTri, false)
	s.cvs.SetGate(core.GatePModFA, false)
	s.cvs.SetGate(core.GatePModFil, false)
	s.cvs.SetGate(core.GateSync, false)

	s.cvs.SetCV(core.CVResonance, 0, false)
	s.cvs.SetCV(core.CVAPW, 0, false)
	s.cvs.SetCV(core.CVBPW, 0, false)
	s.cvs.SetCV(core.CVPModOscB, 0, false)
	s.cvs.SetCV(core.CVExtFil, 0, false)

	InitCounter(s.bus)
}

// tuneOscillators tunes every A oscillator with the B path silent, then
// every B oscillator with the A path silent. Oscillators share the voice
// amplifier, so the mixer volumes pick which one is heard.
func (s *Session) tuneOscillators(report *Report) {
	s.cvs.SetCV(core.CVResonance, 0, false)
	for v := 0; v < core.VoiceCount; v++ {
		s.cvs.SetCV(core.CVFil1+core.CV(v), core.MaxCode, false)
	}

	s.cvs.SetCV(core.CVVolA, core.MaxCode, false)
	s.cvs.SetCV(core.CVVolB, 0, false)
	for v := 0; v < core.VoiceCount; v++ {
		s.tuneChannel(core.CVOsc1A+core.CV(v), report)
	}

	s.cvs.SetCV(core.CVVolA, 0, false)
	s.cvs.SetCV(core.CVVolB, core.MaxCode, false)
	for v := 0; v < core.VoiceCount; v++ {
		s.tuneChannel(core.CVOsc1B+core.CV(v), report)
	}
}

// tuneFilters makes every filter self-oscillate at full resonance with both
// oscillators muted, and tunes them one voice at a time.
func (s *Session) tuneFilters(report *Report) {
	s.cvs.SetCV(core.CVVolA, 0, false)
	s.cvs.SetCV(core.CVVolB, 0, false)
	s.cvs.SetCV(core.CVResonance, core.MaxCode, false)
	for v := 0; v < core.VoiceCount; v++ {
		s.cvs.SetCV(core.CVFil1+core.CV(v), 0, false)
	}

	for v := 0; v < core.VoiceCount; v++ {
		s.tuneChannel(core.CVFil1+core.CV(v), report)
	}
}

func (s *Session) finish() {
	s.cvs.SetCV(core.CVResonance, 0, false)
	for v := 0; v < core.VoiceCount; v++ {
		s.cvs.SetCV(core.CVAmp1+core.CV(v), 0, false)
	}
	s.cvs.Update()

	s.display.Clear()
	s.display.SetLED(core.LEDTune, false, false)
	s.display.Update()
}

// tuneChannel opens cv's amplifier, lets the CVs settle, searches the
// family's marker band from low to high and extrapolates the rest. The
// first failing marker ends the search for this channel only.
func (s *Session) tuneChannel(cv core.CV, report *Report) {
	fam := s.cfg.Family(FamilyOf(cv))
	amp := core.AmpOf(cv)

	s.current = cv
	s.sync.SetCV(cv)
	s.meter.Reset()
	core.RecordEvent(core.EvtChannelStart, cv, uint32(fam.LowMarker), uint32(fam.HighMarker))

	s.cvs.SetCV(amp, core.MaxCode, false)
	for i := 0; i < s.cfg.SettleUpdates; i++ {
		s.cvs.Update()
	}

	res := ChannelResult{CV: cv}
	before := s.table[fam.LowMarker][cv]
	guardNote := uint8(12 * fam.GuardMarker)
	for m := fam.LowMarker; m <= fam.HighMarker; m++ {
		if err := s.SearchMarker(cv, m, guardNote, fam.Precision); err != nil {
			res.Err = err
			timeouts := 0
			var chErr *ChannelError
			if errors.As(err, &chErr) {
				timeouts = chErr.Timeouts
			}
			core.RecordEvent(core.EvtUntunable, cv, uint32(m), uint32(timeouts))
			if core.IsDebugEnabled() {
				core.DebugPrintln("[TUNE] " + err.Error())
			}
			break
		}
		res.Measured++
	}

	switch {
	case res.Measured >= 2:
		Extrapolate(s.table, cv, fam.LowMarker-1, Descending)
		above := fam.LowMarker + res.Measured
		Extrapolate(s.table, cv, above, Ascending)
		core.RecordEvent(core.EvtExtrapolate, cv, uint32(fam.LowMarker-1), uint32(above))
	case res.Measured == 1:
		// one point fixes no slope: move the old column through it
		Offset(s.table, cv, fam.LowMarker, int64(s.table[fam.LowMarker][cv])-int64(before))
		core.RecordEvent(core.EvtExtrapolate, cv, uint32(fam.LowMarker), uint32(fam.LowMarker))
	}

	report.Channels[cv] = res

	s.cvs.SetCV(amp, 0, false)
	s.cvs.Update()
}
