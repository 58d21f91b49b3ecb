package tuner

import (
	"math"

	"p600/core"
)

// mockCVDriver records every CV and gate the tuner commands.
type mockCVDriver struct {
	codes      [core.CVCount]uint16
	gates      [8]bool
	updates    int
	maintained int
	last       core.CV // last tunable CV set
	applied    map[core.CV][]uint16
}

func newMockCVDriver() *mockCVDriver {
	return &mockCVDriver{applied: make(map[core.CV][]uint16)}
}

func (m *mockCVDriver) SetCV(cv core.CV, code uint16, immediate bool) {
	m.codes[cv] = code
	if cv.Tunable() {
		m.last = cv
		m.applied[cv] = append(m.applied[cv], code)
	}
}

func (m *mockCVDriver) CV(cv core.CV) uint16      { return m.codes[cv] }
func (m *mockCVDriver) SetGate(g core.Gate, on bool) { m.gates[g] = on }
func (m *mockCVDriver) MaintainCV(cv core.CV, open bool) {
	m.maintained++
}
func (m *mockCVDriver) Update() { m.updates++ }

// mockMeter answers with a synthetic period for the code last applied to
// the channel under measurement.
type mockMeter struct {
	cvs    *mockCVDriver
	period func(cv core.CV, code uint16) float64
	fail   func(cv core.CV, cycles int) bool
	check  func(cv core.CV)
	resets int
	calls  int

	// timeouts is reported after a failed measurement
	timeouts int
}

func (m *mockMeter) Reset()        { m.resets++ }
func (m *mockMeter) Timeouts() int { return m.timeouts }

func (m *mockMeter) MeasurePeriod(cycles int) (uint32, error) {
	m.calls++
	cv := m.cvs.last
	if m.check != nil {
		m.check(cv)
	}
	if m.fail != nil && m.fail(cv, cycles) {
		return 0, ErrUntunable
	}
	p := m.period(cv, m.cvs.codes[cv])
	return uint32(p * float64(cycles)), nil
}

// vcoPeriod models an exponential converter: marker m's C sits at
// base + m*perOctave.
func vcoPeriod(cfg *Config, base, perOctave float64) func(core.CV, uint16) float64 {
	return func(cv core.CV, code uint16) float64 {
		hz := cfg.LowestHz * math.Exp2((float64(code)-base)/perOctave)
		return cfg.TickRate / hz
	}
}

// boardPeriod gives oscillators 6000 codes per octave from 5000 and filters
// 3000 per octave from 10000.
func boardPeriod(cfg *Config) func(core.CV, uint16) float64 {
	osc := vcoPeriod(cfg, 5000, 6000)
	fil := vcoPeriod(cfg, 10000, 3000)
	return func(cv core.CV, code uint16) float64 {
		if FamilyOf(cv) == FamilyOsc {
			return osc(cv, code)
		}
		return fil(cv, code)
	}
}

// mockStore counts saves.
type mockStore struct {
	saves int
	saved Table
	err   error
}

func (s *mockStore) Save(t *Table) error {
	s.saves++
	s.saved = *t
	return s.err
}

// scriptBus emulates the synchronizer status line and reference counter.
// With edges set, Q follows D as if an audio edge arrived at every status
// read; without, only preset and clear move Q.
type scriptBus struct {
	edges   bool
	latch   uint8
	q       bool
	counter uint16
	msb     bool
	writes  []busWrite
	reads   int
}

type busWrite struct {
	addr  uint8
	value uint8
}

func (b *scriptBus) IOWrite(addr uint8, value uint8) {
	b.writes = append(b.writes, busWrite{addr, value})
	if addr == core.IOSyncControl {
		b.latch = value
		b.async()
	}
}

func (b *scriptBus) async() {
	if b.latch&core.SyncPreset == 0 {
		b.q = true
	} else if b.latch&core.SyncClear == 0 {
		b.q = false
	}
}

func (b *scriptBus) IORead(addr uint8) uint8 {
	b.reads++
	switch addr {
	case core.IOStatus:
		if b.edges && b.latch&core.SyncPreset != 0 && b.latch&core.SyncClear != 0 {
			b.q = b.latch&core.SyncData != 0
		}
		if b.q {
			return 0
		}
		return 1 << core.StatusSyncBit
	case core.IOTimerCh1:
		b.msb = !b.msb
		if b.msb {
			return uint8(b.counter)
		}
		return uint8(b.counter >> 8)
	}
	return 0
}

func (b *scriptBus) MemWrite(addr uint16, value uint8) {}

// syncWrites returns the control latch values written so far.
func (b *scriptBus) syncWrites() []uint8 {
	var out []uint8
	for _, w := range b.writes {
		if w.addr == core.IOSyncControl {
			out = append(out, w.value)
		}
	}
	return out
}
