package mcu

import (
	"errors"
	"testing"
	"time"

	"p600/core"
	"p600/firmware"
	"p600/firmware/config"
	"p600/protocol"
	"p600/storage"
	"p600/synth"
	"p600/tuner"
	"p600/voiceboard"
)

// loopback connects the client straight to an in-process firmware manager
type loopback struct {
	mgr     *firmware.Manager
	pending []byte
	chunk   int
	closed  bool
}

func (l *loopback) Write(b []byte) (int, error) {
	if err := l.mgr.ProcessBytes(b); err != nil {
		return 0, err
	}
	l.pending = append(l.pending, l.mgr.GetOutput()...)
	return len(b), nil
}

// Read hands out at most chunk bytes so frames arrive split
func (l *loopback) Read(b []byte) (int, error) {
	n := len(l.pending)
	if l.chunk > 0 && n > l.chunk {
		n = l.chunk
	}
	n = copy(b, l.pending[:n])
	l.pending = l.pending[n:]
	return n, nil
}

func (l *loopback) Close() error {
	l.closed = true
	return nil
}

func (l *loopback) Flush() error { return nil }

// stageMeter reads periods straight off the emulated stages
type stageMeter struct {
	board   *voiceboard.Board
	bank    *synth.CVBank
	session *tuner.Session
}

func (m *stageMeter) Reset() {}

func (m *stageMeter) MeasurePeriod(cycles int) (uint32, error) {
	cv := m.session.Current()
	hz := m.board.Hz(cv, m.bank.CV(cv))
	if hz == 0 {
		return 0, tuner.ErrUntunable
	}
	return uint32(float64(cycles) * 2000000 / hz), nil
}

func connect(t *testing.T, prepare func(*voiceboard.Board)) (*MCU, *firmware.Manager, *voiceboard.Board) {
	t.Helper()
	board := voiceboard.New(voiceboard.DefaultConfig())
	if prepare != nil {
		prepare(board)
	}
	bank := synth.NewCVBank(board)
	cfg := config.DefaultConfig()

	store, err := storage.NewEEPROMStore(board.EEPROM, cfg.Storage)
	if err != nil {
		t.Fatalf("NewEEPROMStore: %v", err)
	}

	mgr := firmware.NewManager(cfg)
	if err := mgr.Initialize(board, bank, synth.NewPanel(board), store); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	s := mgr.Session()
	s.SetMeter(&stageMeter{board: board, bank: bank, session: s})

	m := NewMCU()
	m.Attach(&loopback{mgr: mgr, chunk: 7})
	return m, mgr, board
}

func TestGetTable(t *testing.T) {
	m, mgr, _ := connect(t, nil)

	table, err := m.GetTable()
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if *table != *mgr.Table() {
		t.Error("table differs from the firmware's")
	}
}

func TestTuneAndEvents(t *testing.T) {
	m, mgr, _ := connect(t, func(b *voiceboard.Board) {
		b.Stages[core.CVOsc6B].Dead = true
	})

	results, err := m.TuneSynth()
	if err != nil {
		t.Fatalf("TuneSynth: %v", err)
	}
	if len(results) != core.TunableCVCount {
		t.Fatalf("got %d results", len(results))
	}
	for _, r := range results {
		if r.Untunable != (r.CV == core.CVOsc6B) {
			t.Errorf("%s untunable=%v", r.CV, r.Untunable)
		}
	}

	table, err := m.GetTable()
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if *table != *mgr.Table() {
		t.Error("table differs after the pass")
	}

	events, err := m.GetEvents()
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(events) == 0 || events[len(events)-1].EventType != core.EvtTuneDone {
		t.Errorf("event ring does not end with TUNE_DONE: %d events", len(events))
	}
}

func TestStoreFailureStatus(t *testing.T) {
	m, _, board := connect(t, nil)
	board.EEPROM.Fail = true

	results, err := m.TuneSynth()
	var status *StatusError
	if !errors.As(err, &status) || status.Status != protocol.StatusStoreFailed {
		t.Fatalf("TuneSynth = %v, want store failure status", err)
	}
	if len(results) != core.TunableCVCount {
		t.Errorf("got %d results alongside the failure", len(results))
	}
	t.Logf("error text: %v", err)
}

func TestSetDebug(t *testing.T) {
	m, _, _ := connect(t, nil)
	defer core.SetDebugEnabled(false)

	if err := m.SetDebug(true); err != nil {
		t.Fatalf("SetDebug: %v", err)
	}
	if !core.IsDebugEnabled() {
		t.Error("firmware debug not enabled")
	}
}

func TestUnknownCommand(t *testing.T) {
	m, _, _ := connect(t, nil)

	_, err := m.Call(CommandTimeout, 99)
	var status *StatusError
	if !errors.As(err, &status) || status.Status != protocol.StatusUnknown {
		t.Errorf("Call = %v, want unknown status", err)
	}
}

func TestTimeout(t *testing.T) {
	m := NewMCU()
	m.Attach(&silentPort{})

	start := time.Now()
	_, err := m.Call(20*time.Millisecond, protocol.CmdGetTable)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Call = %v, want ErrTimeout", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("returned before the deadline")
	}
}

func TestTimeoutWithStaleFrames(t *testing.T) {
	out := protocol.NewScratchOutput()
	if err := protocol.EncodeMessage(out, 9, protocol.RespDone, uint32(protocol.CmdGetTable), protocol.StatusOK); err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	m := NewMCU()
	m.Attach(&chattyPort{frame: out.Result()})

	start := time.Now()
	_, err := m.Call(20*time.Millisecond, protocol.CmdGetTable)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Call = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("stale frames held Call for %v", elapsed)
	}
}

func TestNotConnected(t *testing.T) {
	if _, err := NewMCU().GetTable(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("GetTable = %v, want ErrNotConnected", err)
	}
}

func TestParseCV(t *testing.T) {
	tests := []struct {
		name string
		want core.CV
		ok   bool
	}{
		{"a1", core.CVOsc1A, true},
		{"b6", core.CVOsc6B, true},
		{"f3", core.CVFil3, true},
		{"cv20", 0, false},
		{"x1", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCV(tt.name)
			if (err == nil) != tt.ok || got != tt.want {
				t.Errorf("ParseCV(%q) = %v, %v", tt.name, got, err)
			}
		})
	}
}

type silentPort struct{}

func (silentPort) Read(b []byte) (int, error) {
	time.Sleep(time.Millisecond)
	return 0, nil
}
func (silentPort) Write(b []byte) (int, error) { return len(b), nil }
func (silentPort) Close() error                { return nil }
func (silentPort) Flush() error                { return nil }

func TestIdentify(t *testing.T) {
	m, _, _ := connect(t, nil)

	dict, err := m.Identify()
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	t.Logf("firmware %s", dict.Version)

	// the dictionary must agree with the IDs compiled into the host
	for name, id := range map[string]uint16{
		"tune_synth":                  protocol.CmdTuneSynth,
		"get_table":                   protocol.CmdGetTable,
		"get_events":                  protocol.CmdGetEvents,
		"set_debug enable=%c":         protocol.CmdSetDebug,
		"identify offset=%u count=%c": protocol.CmdIdentify,
	} {
		if got, ok := dict.Commands[name]; !ok || got != int(id) {
			t.Errorf("command %q = %d (present %v), want %d", name, got, ok, id)
		}
	}
	if dict.Config["TUNABLE_CVS"] != "18" {
		t.Errorf("TUNABLE_CVS = %q", dict.Config["TUNABLE_CVS"])
	}
}

// chattyPort answers every read with the same frame, never the one asked for
type chattyPort struct {
	frame []byte
}

func (p *chattyPort) Read(b []byte) (int, error) {
	time.Sleep(100 * time.Microsecond)
	return copy(b, p.frame), nil
}
func (p *chattyPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *chattyPort) Close() error                { return nil }
func (p *chattyPort) Flush() error                { return nil }
