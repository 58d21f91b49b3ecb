package tuner

import "p600/core"

// PeriodMeter measures the period of the signal currently routed to the
// synchronizer.
type PeriodMeter interface {
	// Reset clears the timeout count. Called at the start of each channel
	// and each marker search.
	Reset()

	// MeasurePeriod returns the reference ticks spanned by cycles periods,
	// summed, or ErrUntunable.
	MeasurePeriod(cycles int) (uint32, error)
}

// timeoutCounter is implemented by meters that count status timeouts.
type timeoutCounter interface {
	Timeouts() int
}

// SyncMeter measures periods with the board's synchronizer and reference
// counter channel 1.
type SyncMeter struct {
	bus  core.BusDriver
	sync Synchronizer

	// Yield runs between cycles.
	Yield func()
}

// NewSyncMeter returns a meter on bus using cfg's poll budget and timeout
// limit.
func NewSyncMeter(bus core.BusDriver, cfg *Config) *SyncMeter {
	m := &SyncMeter{}
	m.init(bus, cfg)
	return m
}

func (m *SyncMeter) init(bus core.BusDriver, cfg *Config) {
	m.bus = bus
	m.sync.init(bus, cfg.PollBudget, cfg.MaxTimeouts)
}

// Synchronizer exposes the meter's state machine.
func (m *SyncMeter) Synchronizer() *Synchronizer {
	return &m.sync
}

func (m *SyncMeter) Reset() {
	m.sync.Reset()
}

// Timeouts returns the timeouts counted since Reset.
func (m *SyncMeter) Timeouts() int {
	return m.sync.Timeouts()
}

// SetCV tags recorded events with the channel being measured.
func (m *SyncMeter) SetCV(cv core.CV) {
	m.sync.CV = cv
}

func (m *SyncMeter) MeasurePeriod(cycles int) (uint32, error) {
	var total uint32

	m.sync.Prepare()

	// ch1 counts from full scale, ch2 is the one-shot gate
	m.load(core.IOTimerCh1, 0)
	m.load(core.IOTimerCh2, 1)

	m.sync.EnableCounter()

	for ; cycles > 0; cycles-- {
		if err := m.sync.Cycle(); err != nil {
			return 0, err
		}
		m.sync.RestartCounter()

		total += m.readElapsed()

		if m.Yield != nil {
			m.Yield()
		}
	}
	return total, nil
}

// readElapsed reads channel 1 (LSB then MSB), reloads it and returns the
// ticks counted since the last reload.
func (m *SyncMeter) readElapsed() uint32 {
	c := uint16(m.bus.IORead(core.IOTimerCh1))
	c |= uint16(m.bus.IORead(core.IOTimerCh1)) << 8
	m.load(core.IOTimerCh1, 0)
	return uint32(core.MaxCode - c)
}

func (m *SyncMeter) load(addr uint8, v uint16) {
	m.bus.IOWrite(addr, uint8(v))
	m.bus.IOWrite(addr, uint8(v>>8))
}

// InitCounter programs the 8253 modes used by the tuner.
func InitCounter(bus core.BusDriver) {
	bus.IOWrite(core.IOTimerControl, core.TimerCh0Mode0)
	bus.IOWrite(core.IOTimerControl, core.TimerCh1Mode0)
	bus.IOWrite(core.IOTimerControl, core.TimerCh2Mode1)
}
