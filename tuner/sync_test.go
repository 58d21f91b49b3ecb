package tuner

import (
	"errors"
	"testing"

	"p600/core"
)

func TestPoll(t *testing.T) {
	calls := 0
	ok := Poll(10, func() bool {
		calls++
		return calls == 3
	})
	if !ok || calls != 3 {
		t.Errorf("Poll stopped after %d calls, ok=%v; want 3, true", calls, ok)
	}

	calls = 0
	ok = Poll(10, func() bool {
		calls++
		return false
	})
	if ok || calls != 10 {
		t.Errorf("Poll spent %d calls, ok=%v; want 10, false", calls, ok)
	}

	if Poll(0, func() bool { return true }) {
		t.Errorf("Poll with no budget succeeded")
	}
}

func TestSynchronizerCycle(t *testing.T) {
	bus := &scriptBus{edges: true}
	s := NewSynchronizer(bus, 16, 5)

	if err := s.Advance(); err != errSyncIdle {
		t.Fatalf("Advance before arming = %v, want errSyncIdle", err)
	}

	s.Prepare()
	s.EnableCounter()
	if s.State() != StateArmed {
		t.Fatalf("state after EnableCounter = %v, want armed", s.State())
	}

	wantStates := []SyncState{
		StatePrimed, StateSynced, StateLoaded, StateCleared, StateCounting, StateCaptured,
	}
	for i, want := range wantStates {
		if err := s.Advance(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if s.State() != want {
			t.Fatalf("step %d: state = %v, want %v", i, s.State(), want)
		}
	}

	const (
		p  = core.SyncPreset
		ce = core.SyncCountEn
		d  = core.SyncData
		cl = core.SyncClear
	)
	want := []uint8{
		p | cl,          // prepare
		p | cl | ce,     // counter enabled
		cl | ce,         // preset asserted
		p | cl | ce,     // preset released
		p | cl | ce | d, // D raised
		p | ce | d,      // clear asserted
		p | cl | ce | d, // clear released
		p | cl | ce,     // D lowered
	}
	got := bus.syncWrites()
	if len(got) != len(want) {
		t.Fatalf("latch writes = %x, want %x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("latch write %d = %#02x, want %#02x", i, got[i], want[i])
		}
	}

	if s.Timeouts() != 0 {
		t.Errorf("timeouts = %d on a healthy signal", s.Timeouts())
	}
}

func TestSynchronizerTimeouts(t *testing.T) {
	tests := []struct {
		name        string
		maxTimeouts int
		// cycles completed before untunable; a dead signal misses two
		// edge waits per cycle
		cycles int
	}{
		{"stock limit", 5, 2},
		{"limit of one", 1, 0},
		{"limit of four", 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &scriptBus{}
			s := NewSynchronizer(bus, 8, tt.maxTimeouts)
			s.Prepare()
			s.EnableCounter()

			completed := 0
			var err error
			for i := 0; i < 10; i++ {
				if err = s.Cycle(); err != nil {
					break
				}
				s.RestartCounter()
				completed++
			}

			if !errors.Is(err, ErrUntunable) {
				t.Fatalf("err = %v, want ErrUntunable", err)
			}
			if completed != tt.cycles {
				t.Errorf("completed %d cycles, want %d", completed, tt.cycles)
			}
			if s.Timeouts() != tt.maxTimeouts {
				t.Errorf("timeouts = %d, want %d", s.Timeouts(), tt.maxTimeouts)
			}

			s.Reset()
			if s.Timeouts() != 0 {
				t.Errorf("timeouts after Reset = %d", s.Timeouts())
			}
		})
	}
}

func TestSynchronizerTimeoutIsTransient(t *testing.T) {
	bus := &scriptBus{}
	s := NewSynchronizer(bus, 4, 5)
	s.Prepare()
	s.EnableCounter()

	// preset forces Q high: the first wait succeeds without an edge
	if err := s.Advance(); err != nil {
		t.Fatalf("preset step: %v", err)
	}
	// releasing preset needs an edge that never comes
	if err := s.Advance(); err != ErrSyncTimeout {
		t.Fatalf("edge step = %v, want ErrSyncTimeout", err)
	}
	if s.State() != StateSynced {
		t.Errorf("a timed out step must still advance, state = %v", s.State())
	}
	if bus.reads != 1+4 {
		t.Errorf("status reads = %d, want 5", bus.reads)
	}
}

func TestSyncMeterMeasurePeriod(t *testing.T) {
	cfg := DefaultConfig()
	bus := &scriptBus{edges: true, counter: core.MaxCode - 15290}
	m := NewSyncMeter(bus, &cfg)

	yields := 0
	m.Yield = func() { yields++ }

	ticks, err := m.MeasurePeriod(4)
	if err != nil {
		t.Fatalf("MeasurePeriod: %v", err)
	}
	if ticks != 4*15290 {
		t.Errorf("ticks = %d, want %d", ticks, 4*15290)
	}
	if yields != 4 {
		t.Errorf("yields = %d, want 4", yields)
	}

	// ch1 and ch2 loads, then a ch1 reload after every read
	var ch1, ch2 int
	for _, w := range bus.writes {
		switch w.addr {
		case core.IOTimerCh1:
			ch1++
		case core.IOTimerCh2:
			ch2++
		}
	}
	if ch1 != 2+4*2 || ch2 != 2 {
		t.Errorf("counter writes ch1=%d ch2=%d, want 10 and 2", ch1, ch2)
	}
}

func TestSyncMeterUntunable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollBudget = 32
	bus := &scriptBus{}
	m := NewSyncMeter(bus, &cfg)

	yields := 0
	m.Yield = func() { yields++ }

	_, err := m.MeasurePeriod(16)
	if !errors.Is(err, ErrUntunable) {
		t.Fatalf("err = %v, want ErrUntunable", err)
	}
	if yields != 2 {
		t.Errorf("yields = %d, want 2 cycles before giving up", yields)
	}
}

func TestInitCounter(t *testing.T) {
	bus := &scriptBus{}
	InitCounter(bus)

	want := []uint8{core.TimerCh0Mode0, core.TimerCh1Mode0, core.TimerCh2Mode1}
	if len(bus.writes) != len(want) {
		t.Fatalf("writes = %v", bus.writes)
	}
	for i, w := range bus.writes {
		if w.addr != core.IOTimerControl || w.value != want[i] {
			t.Errorf("write %d = %+v, want control %#02x", i, w, want[i])
		}
	}
}
