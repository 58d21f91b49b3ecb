package tuner

import "p600/core"

// Store persists a completed calibration table.
type Store interface {
	Save(t *Table) error
}

// Session is the context of one calibration pass: collaborators, the table
// being written and the channel under test. Sessions share nothing, so
// several may run one after another against different boards.
type Session struct {
	cfg     Config
	table   *Table
	bus     core.BusDriver
	cvs     core.CVDriver
	display core.Display
	store   Store

	sync  SyncMeter
	meter PeriodMeter

	current core.CV

	// OnYield runs at every cooperative yield point, after the CV refresh.
	// Targets hook the timer dispatcher here.
	OnYield func()
}

// NewSession returns a session measuring through the board's synchronizer.
// display and store may be nil.
func NewSession(cfg Config, table *Table, bus core.BusDriver, cvs core.CVDriver, display core.Display, store Store) *Session {
	if display == nil {
		display = nopDisplay{}
	}
	s := &Session{
		cfg:     cfg,
		table:   table,
		bus:     bus,
		cvs:     cvs,
		display: display,
		store:   store,
	}
	s.sync.init(bus, &s.cfg)
	s.sync.Yield = s.yield
	s.meter = &s.sync
	return s
}

// SetMeter replaces the synchronizer meter, for boards that measure periods
// another way and for tests.
func (s *Session) SetMeter(m PeriodMeter) {
	s.meter = m
}

// Config returns the session's parameters.
func (s *Session) Config() *Config {
	return &s.cfg
}

// Table returns the table the session writes.
func (s *Session) Table() *Table {
	return s.table
}

// Current returns the channel under test.
func (s *Session) Current() core.CV {
	return s.current
}

// Yield services the rest of the system between measurement cycles. Meters
// other than the synchronizer call it themselves.
func (s *Session) Yield() {
	s.yield()
}

func (s *Session) yield() {
	s.cvs.MaintainCV(s.current, true)

	core.ShowCV(s.display, s.current)
	s.display.Update()

	s.cvs.Update()

	if s.OnYield != nil {
		s.OnYield()
	}

	s.cvs.MaintainCV(s.current, false)
}

type nopDisplay struct{}

func (nopDisplay) Clear() {}
func (nopDisplay) SetASCII(left, right byte) {}
func (nopDisplay) SetLED(core.LED, bool, bool) {}
func (nopDisplay) Update() {}
