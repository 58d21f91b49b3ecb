// Package voiceboard emulates the analog voice board closely enough to run
// a calibration pass against it: the bus, the CV sample-and-holds, the
// gate and display latches, the 8253 reference counter, the synchronizer
// flip-flops and one exponential converter per tunable stage. Time is
// virtual and advances with every bus access.
package voiceboard

import (
	"math"
	"math/rand"

	"p600/core"
)

// Config sets the emulated board's clocking and analog imperfections.
type Config struct {
	TickRate    float64 // reference counter clock, Hz
	LowestHz    float64 // frequency of the lowest C
	AccessTicks uint64  // reference ticks per bus access
	Drift       float64 // stage scale error, fraction
	Jitter      float64 // period noise, fraction (standard deviation)
	Seed        int64
	// SyncTime feeds the virtual clock to core.SetTime.
	SyncTime bool
}

// DefaultConfig matches the stock board: 2 MHz reference, two microseconds
// per bus access, 3% worst-case drift.
func DefaultConfig() Config {
	return Config{
		TickRate:    2000000,
		LowestHz:    261.63 / 16,
		AccessTicks: 4,
		Drift:       0.03,
		Jitter:      0.0001,
		Seed:        1,
	}
}

// Board is an emulated voice board. It implements core.BusDriver.
type Board struct {
	cfg Config
	rng *rand.Rand

	now      uint64
	accesses uint64

	// Stages may be edited before a pass, e.g. to kill a stage.
	Stages [core.TunableCVCount]Stage

	dacHigh  uint8
	dac      uint16
	selected uint8
	held     [core.CVCount]uint16
	gates    uint8
	digits   [2]uint8
	leds     uint8

	timer timer8253
	ff    flipFlops
	src   source

	// EEPROM is the calibration EEPROM on the board's I2C bus.
	EEPROM *EEPROM
}

// New returns a board with drifted stages, every S&H at 0 and the
// synchronizer lines low.
func New(cfg Config) *Board {
	b := &Board{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		selected: core.CVHold,
		src:      source{stage: -1},
		EEPROM:   NewEEPROM(4096),
	}
	b.driftStages(cfg.Drift)
	return b
}

// IOWrite implements core.BusDriver.
func (b *Board) IOWrite(addr uint8, value uint8) {
	switch addr {
	case core.IOTimerCh0, core.IOTimerCh1, core.IOTimerCh2:
		b.timer.write(addr, value)
	case core.IOTimerControl:
		b.timer.control(value)
	case core.IOSyncControl:
		b.ff.setLatch(value, float64(b.now), &b.timer)
	case core.IOLEDs:
		b.leds = value
	case core.IODigit0:
		b.digits[0] = value
	case core.IODigit1:
		b.digits[1] = value
	}
	b.tick()
}

// IORead implements core.BusDriver.
func (b *Board) IORead(addr uint8) uint8 {
	b.tick()
	switch addr {
	case core.IOStatus:
		if b.ff.q {
			return 0
		}
		return 1 << core.StatusSyncBit
	case core.IOTimerCh0, core.IOTimerCh1, core.IOTimerCh2:
		return b.timer.read(addr)
	}
	return 0
}

// MemWrite implements core.BusDriver.
func (b *Board) MemWrite(addr uint16, value uint8) {
	switch addr {
	case core.MemDACHigh:
		b.dacHigh = value
	case core.MemDACLow:
		b.dac = uint16(b.dacHigh)<<8 | uint16(value)
		b.sample()
	case core.MemCVSelect:
		b.selected = value
		b.sample()
	case core.MemGates:
		b.gates = value
	}
	b.tick()
}

// sample lets the selected S&H track the DAC.
func (b *Board) sample() {
	if int(b.selected) >= int(core.CVCount) {
		return
	}
	if b.held[b.selected] == b.dac {
		return
	}
	b.held[b.selected] = b.dac
	b.reroute()
}

// tick advances virtual time by one bus access and lets the synchronizer
// see every audio edge in between.
func (b *Board) tick() {
	t0 := b.now
	b.now += b.cfg.AccessTicks
	b.accesses++

	if b.src.stage >= 0 {
		end := float64(b.now)
		for e := b.nextEdge(float64(t0)); e <= end; e += b.src.period {
			b.ff.edge(e, &b.timer)
		}
	}

	if b.cfg.SyncTime {
		core.SetTime(uint32(float64(b.now) * core.TimerFreq / b.cfg.TickRate))
	}
}

// Now returns the virtual time in reference ticks.
func (b *Board) Now() uint64 {
	return b.now
}

// Seconds returns the virtual time in seconds.
func (b *Board) Seconds() float64 {
	return float64(b.now) / b.cfg.TickRate
}

// Accesses returns the number of bus accesses so far.
func (b *Board) Accesses() uint64 {
	return b.accesses
}

// Held returns the code held by cv's S&H.
func (b *Board) Held(cv core.CV) uint16 {
	return b.held[cv]
}

// Gate reports a gate latch bit.
func (b *Board) Gate(g core.Gate) bool {
	return b.gates&(1<<g) != 0
}

// Digits returns the raw segment patterns of the two digits.
func (b *Board) Digits() (uint8, uint8) {
	return b.digits[0], b.digits[1]
}

// LED reports an LED latch bit.
func (b *Board) LED(led core.LED) bool {
	return b.leds&(1<<led) != 0
}

// Hz returns the frequency cv's stage produces at code.
func (b *Board) Hz(cv core.CV, code uint16) float64 {
	return b.Stages[cv].Hz(b.cfg.LowestHz, code)
}

// NoteHz returns the equal-tempered frequency of note, marker 0's C being
// note 0.
func (b *Board) NoteHz(note float64) float64 {
	return b.cfg.LowestHz * math.Exp2(note/12)
}

// Audible returns the tunable CV currently routed to the synchronizer, or
// -1.
func (b *Board) Audible() int {
	return b.src.stage
}
