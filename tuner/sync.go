package tuner

import (
	"strconv"

	"p600/core"
)

// SyncState names the synchronizer's position in the period capture cycle.
type SyncState uint8

const (
	StateIdle     SyncState = iota // lines not initialised
	StateArmed                     // preset and clear released, counter enabled
	StatePrimed                    // preset asserted, Q forced high
	StateSynced                    // preset released, Q latched low on an audio edge
	StateLoaded                    // D raised, Q high from the next edge
	StateCleared                   // clear asserted, Q forced low
	StateCounting                  // clear released, counter gated from the next edge
	StateCaptured                  // D lowered, counter stopped after one period
)

func (s SyncState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StatePrimed:
		return "primed"
	case StateSynced:
		return "synced"
	case StateLoaded:
		return "loaded"
	case StateCleared:
		return "cleared"
	case StateCounting:
		return "counting"
	case StateCaptured:
		return "captured"
	}
	return "unknown"
}

// syncStep is one transition: a control latch write followed by a bounded
// wait for the status line.
type syncStep struct {
	set, clear uint8
	status     uint8
	next       SyncState
}

// syncSteps is indexed by the state the transition leaves. Captured starts
// the next cycle like Armed.
var syncSteps = [...]syncStep{
	StateArmed:    {0, core.SyncPreset, 0, StatePrimed},
	StatePrimed:   {core.SyncPreset, 0, 1, StateSynced},
	StateSynced:   {core.SyncData, 0, 0, StateLoaded},
	StateLoaded:   {0, core.SyncClear, 1, StateCleared},
	StateCleared:  {core.SyncClear, 0, 0, StateCounting},
	StateCounting: {0, core.SyncData, 1, StateCaptured},
	StateCaptured: {0, core.SyncPreset, 0, StatePrimed},
}

// Synchronizer drives the two flip-flops that gate the reference counter to
// the edges of the measured signal. It counts status timeouts until Reset.
type Synchronizer struct {
	bus         core.BusDriver
	pollBudget  int
	maxTimeouts int

	latch    uint8
	state    SyncState
	want     uint8
	steps    uint16
	timeouts int

	// CV is only used to tag recorded events.
	CV core.CV

	statusPred func() bool
}

// NewSynchronizer returns a synchronizer on bus in the idle state.
func NewSynchronizer(bus core.BusDriver, pollBudget, maxTimeouts int) *Synchronizer {
	s := &Synchronizer{}
	s.init(bus, pollBudget, maxTimeouts)
	return s
}

func (s *Synchronizer) init(bus core.BusDriver, pollBudget, maxTimeouts int) {
	s.bus = bus
	s.pollBudget = pollBudget
	s.maxTimeouts = maxTimeouts
	s.state = StateIdle
	s.statusPred = s.statusMatches
}

// State returns the current state.
func (s *Synchronizer) State() SyncState {
	return s.state
}

// Timeouts returns the timeouts counted since Reset.
func (s *Synchronizer) Timeouts() int {
	return s.timeouts
}

// Reset clears the timeout count.
func (s *Synchronizer) Reset() {
	s.timeouts = 0
}

// Prepare drives preset and clear inactive with D low and the counter
// disabled, leaving the synchronizer idle until EnableCounter.
func (s *Synchronizer) Prepare() {
	s.latch = 0
	s.steps = 0
	s.mask(core.SyncPreset|core.SyncClear, core.SyncData|core.SyncCountEn)
	s.state = StateIdle
}

// EnableCounter lets the reference counter run and arms the cycle.
func (s *Synchronizer) EnableCounter() {
	s.mask(core.SyncCountEn, 0)
	s.state = StateArmed
}

// RestartCounter pulses the counter enable after a capture.
func (s *Synchronizer) RestartCounter() {
	s.mask(0, core.SyncCountEn)
	s.mask(core.SyncCountEn, 0)
	s.state = StateArmed
}

// Advance performs one transition. A status wait that runs out of budget
// still moves to the next state and returns ErrSyncTimeout, or ErrUntunable
// once the timeout count reaches the limit.
func (s *Synchronizer) Advance() error {
	if s.state == StateIdle {
		return errSyncIdle
	}

	step := syncSteps[s.state]
	s.mask(step.set, step.clear)
	s.state = step.next

	s.want = step.status
	if Poll(s.pollBudget, s.statusPred) {
		return nil
	}

	s.timeouts++
	core.RecordEvent(core.EvtSyncTimeout, s.CV, uint32(s.steps), uint32(s.timeouts))
	if core.IsDebugEnabled() {
		core.DebugPrintln("[TUNE] bad flip flop status, step " + strconv.Itoa(int(s.steps)) +
			" timeouts " + strconv.Itoa(s.timeouts))
	}
	if s.timeouts >= s.maxTimeouts {
		return ErrUntunable
	}
	return ErrSyncTimeout
}

// Cycle runs the six transitions that capture one period. Timeouts are
// absorbed; only ErrUntunable ends the cycle early.
func (s *Synchronizer) Cycle() error {
	for i := 0; i < 6; i++ {
		if err := s.Advance(); err == ErrUntunable || err == errSyncIdle {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) mask(set, clear uint8) {
	s.latch |= set
	s.latch &^= clear
	s.bus.IOWrite(core.IOSyncControl, s.latch)
	s.steps++
}

func (s *Synchronizer) statusMatches() bool {
	return (s.bus.IORead(core.IOStatus)>>core.StatusSyncBit)&1 == s.want
}
