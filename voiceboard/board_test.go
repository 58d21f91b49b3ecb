package voiceboard_test

import (
	"errors"
	"math"
	"testing"

	"p600/core"
	"p600/storage"
	"p600/synth"
	"p600/tuner"
	"p600/voiceboard"
)

func idealBoard() *voiceboard.Board {
	cfg := voiceboard.DefaultConfig()
	cfg.Drift = 0
	cfg.Jitter = 0
	return voiceboard.New(cfg)
}

func TestRouting(t *testing.T) {
	tests := []struct {
		name string
		cvs  map[core.CV]uint16
		want int
	}{
		{"silent", nil, -1},
		{"osc a voice 1", map[core.CV]uint16{core.CVAmp1: core.MaxCode, core.CVVolA: core.MaxCode}, int(core.CVOsc1A)},
		{"osc b voice 4", map[core.CV]uint16{core.CVAmp4: core.MaxCode, core.CVVolB: core.MaxCode}, int(core.CVOsc4B)},
		{"both osc up", map[core.CV]uint16{core.CVAmp2: core.MaxCode, core.CVVolA: core.MaxCode, core.CVVolB: core.MaxCode}, -1},
		{"filter voice 6", map[core.CV]uint16{core.CVAmp6: core.MaxCode, core.CVResonance: core.MaxCode}, int(core.CVFil6)},
		{"filter not resonant", map[core.CV]uint16{core.CVAmp6: core.MaxCode, core.CVResonance: 0x8000}, -1},
		{"amp closed", map[core.CV]uint16{core.CVVolA: core.MaxCode}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := idealBoard()
			bank := synth.NewCVBank(board)
			for cv := core.CV(0); int(cv) < core.TunableCVCount; cv++ {
				bank.SetCV(cv, 0x6000, false)
			}
			for cv, code := range tt.cvs {
				bank.SetCV(cv, code, false)
			}
			bank.Update()

			if got := board.Audible(); got != tt.want {
				t.Errorf("Audible() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStatusFollowsSynchronizer(t *testing.T) {
	board := idealBoard()

	board.IOWrite(core.IOSyncControl, core.SyncClear|core.SyncCountEn)
	if got := board.IORead(core.IOStatus) & (1 << core.StatusSyncBit); got != 0 {
		t.Error("preset did not pull the status line low")
	}
	board.IOWrite(core.IOSyncControl, core.SyncPreset)
	if got := board.IORead(core.IOStatus) & (1 << core.StatusSyncBit); got == 0 {
		t.Error("clear did not raise the status line")
	}
}

func TestSyncMeterOnBoard(t *testing.T) {
	tests := []struct {
		name   string
		hz     float64
		cycles int
	}{
		{"single", 200, 1},
		{"four", 523.25, 4},
		{"sixteen", 1046.5, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := idealBoard()
			bank := synth.NewCVBank(board)
			cfg := tuner.DefaultConfig()

			code := board.Stages[core.CVOsc2A].CodeForHz(cfg.LowestHz, tt.hz)
			bank.SetCV(core.CVOsc2A, uint16(math.Round(code)), false)
			bank.SetCV(core.CVAmp2, core.MaxCode, false)
			bank.SetCV(core.CVVolA, core.MaxCode, false)
			bank.Update()

			tuner.InitCounter(board)
			meter := tuner.NewSyncMeter(board, &cfg)
			ticks, err := meter.MeasurePeriod(tt.cycles)
			if err != nil {
				t.Fatalf("MeasurePeriod: %v", err)
			}

			want := float64(tt.cycles) * cfg.TickRate / board.Hz(core.CVOsc2A, uint16(math.Round(code)))
			if math.Abs(float64(ticks)-want) > float64(tt.cycles) {
				t.Errorf("ticks = %d, want %.1f", ticks, want)
			}
			if meter.Synchronizer().Timeouts() != 0 {
				t.Errorf("timeouts = %d on a live signal", meter.Synchronizer().Timeouts())
			}
		})
	}
}

func TestSyncMeterSilent(t *testing.T) {
	board := idealBoard()
	cfg := tuner.DefaultConfig()
	cfg.PollBudget = 200

	tuner.InitCounter(board)
	meter := tuner.NewSyncMeter(board, &cfg)
	// two missed edges per cycle
	_, err := meter.MeasurePeriod(8)
	if !errors.Is(err, tuner.ErrUntunable) {
		t.Fatalf("MeasurePeriod = %v, want ErrUntunable", err)
	}
	if got := meter.Synchronizer().Timeouts(); got != cfg.MaxTimeouts {
		t.Errorf("timeouts = %d, want %d", got, cfg.MaxTimeouts)
	}
}

func TestEEPROMTx(t *testing.T) {
	e := voiceboard.NewEEPROM(256)

	if err := e.Tx(e.Address, []byte{0x00, 0x10, 1, 2, 3}, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := make([]byte, 4)
	if err := e.Tx(e.Address, []byte{0x00, 0x10}, r); err != nil {
		t.Fatalf("read: %v", err)
	}
	if r[0] != 1 || r[1] != 2 || r[2] != 3 || r[3] != 0xFF {
		t.Errorf("read %v, want [1 2 3 255]", r)
	}
	if e.Writes != 1 {
		t.Errorf("Writes = %d, want 1", e.Writes)
	}

	if err := e.Tx(e.Address+1, []byte{0, 0}, r); !errors.Is(err, voiceboard.ErrNoAck) {
		t.Errorf("wrong address: %v, want ErrNoAck", err)
	}
}

func TestRenderer(t *testing.T) {
	board := idealBoard()
	r := board.NewRenderer(48000)

	code := uint16(board.Stages[core.CVOsc1A].CodeForHz(16.35, 480))
	buf := r.Note(nil, core.CVOsc1A, code, 0.5)
	buf = r.Rest(buf, 0.25)

	if len(buf) != 36000 {
		t.Fatalf("len = %d, want 36000", len(buf))
	}
	for i, s := range buf {
		if s > r.Amplitude || s < -r.Amplitude {
			t.Fatalf("sample %d = %d out of range", i, s)
		}
	}
	for _, s := range buf[24000:] {
		if s != 0 {
			t.Fatal("rest is not silent")
		}
	}

	// one wrap per period: about 240 in half a second
	wraps := 0
	for i := 1; i < 24000; i++ {
		if buf[i] < buf[i-1] {
			wraps++
		}
	}
	if wraps < 235 || wraps > 245 {
		t.Errorf("%d periods rendered, want about 240", wraps)
	}
}

type rig struct {
	board   *voiceboard.Board
	table   tuner.Table
	store   *storage.EEPROMStore
	session *tuner.Session
}

func newRig(t *testing.T, cfg voiceboard.Config) *rig {
	t.Helper()
	r := &rig{board: voiceboard.New(cfg)}

	store, err := storage.NewEEPROMStore(r.board.EEPROM, storage.Config{})
	if err != nil {
		t.Fatalf("NewEEPROMStore: %v", err)
	}
	r.store = store

	tcfg := tuner.DefaultConfig()
	r.table.Init(&tcfg)
	r.session = tuner.NewSession(tcfg, &r.table, r.board,
		synth.NewCVBank(r.board), synth.NewPanel(r.board), store)
	return r
}

// checkMarker compares the frequency cv produces at its table entry with
// marker's C.
func (r *rig) checkMarker(t *testing.T, cv core.CV, marker int, tolerance float64) {
	t.Helper()
	got := r.board.Hz(cv, r.table[marker][cv])
	want := r.board.NoteHz(float64(12 * marker))
	if math.Abs(got/want-1) > tolerance {
		t.Errorf("%s marker %d: code %d plays %.2f Hz, want %.2f Hz",
			cv, marker, r.table[marker][cv], got, want)
	}
}

func TestFullPass(t *testing.T) {
	if testing.Short() {
		t.Skip("full emulated pass")
	}

	r := newRig(t, voiceboard.DefaultConfig())
	report, err := r.session.TuneSynth()
	if err != nil {
		t.Fatalf("TuneSynth: %v", err)
	}
	t.Logf("pass took %.1f s of board time, %d bus accesses", r.board.Seconds(), r.board.Accesses())

	if got := report.Untunable(); len(got) != 0 {
		t.Fatalf("untunable channels: %v", got)
	}

	cfg := r.session.Config()
	for cv := core.CV(0); int(cv) < core.TunableCVCount; cv++ {
		fam := cfg.Family(tuner.FamilyOf(cv))
		if got, want := report.Channels[cv].Measured, fam.HighMarker-fam.LowMarker+1; got != want {
			t.Errorf("%s measured %d markers, want %d", cv, got, want)
		}
		for m := fam.LowMarker; m <= fam.HighMarker; m++ {
			r.checkMarker(t, cv, m, 0.01)
		}
		// extrapolated entries follow the converter's straight line
		r.checkMarker(t, cv, fam.LowMarker-1, 0.02)
		r.checkMarker(t, cv, fam.HighMarker+1, 0.02)

		// in-between notes land close to equal temperament
		note := uint8(12*fam.LowMarker + 7)
		got := r.board.Hz(cv, r.table.CodeForNote(note, 0, cv))
		if want := r.board.NoteHz(float64(note)); math.Abs(got/want-1) > 0.01 {
			t.Errorf("%s note %d plays %.2f Hz, want %.2f Hz", cv, note, got, want)
		}
	}

	if r.board.LED(core.LEDTune) {
		t.Error("tune LED left on")
	}
	for cv := core.CVAmp1; cv <= core.CVAmp6; cv++ {
		if r.board.Held(cv) != 0 {
			t.Errorf("%s left open", cv)
		}
	}

	var loaded tuner.Table
	if err := r.store.Load(&loaded); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != r.table {
		t.Error("stored table differs from the tuned table")
	}
}

func TestFaultyStages(t *testing.T) {
	if testing.Short() {
		t.Skip("full emulated pass")
	}

	r := newRig(t, voiceboard.DefaultConfig())
	ramp := r.table

	r.board.Stages[core.CVOsc2B].Dead = true
	// silent above 0xA000, so every search opens with a silent probe at full
	// scale. At marker 5 that probe averages 4 cycles and runs out of timeouts.
	r.board.Stages[core.CVOsc5A] = voiceboard.Stage{BaseCode: 3000, PerOctave: 5800, StallAbove: 0xA000}

	report, err := r.session.TuneSynth()
	if err != nil {
		t.Fatalf("TuneSynth: %v", err)
	}

	untunable := report.Untunable()
	if len(untunable) != 2 || untunable[0] != core.CVOsc5A || untunable[1] != core.CVOsc2B {
		t.Fatalf("untunable = %v, want [a5 b2]", untunable)
	}

	dead := report.Channels[core.CVOsc2B]
	if !errors.Is(dead.Err, tuner.ErrUntunable) || dead.Measured != 0 {
		t.Errorf("dead channel: %+v", dead)
	}
	if r.table.Column(core.CVOsc2B) != ramp.Column(core.CVOsc2B) {
		t.Error("dead channel's column changed")
	}

	stalled := report.Channels[core.CVOsc5A]
	var chErr *tuner.ChannelError
	if !errors.As(stalled.Err, &chErr) || chErr.Marker != 5 || stalled.Measured != 2 {
		t.Errorf("stalled channel: %+v", stalled)
	}
	if chErr != nil && chErr.Timeouts < r.session.Config().MaxTimeouts {
		t.Errorf("stalled channel gave up after %d timeouts", chErr.Timeouts)
	}

	// measured markers, and the extrapolated ones the stage can still play
	for m := 2; m <= 6; m++ {
		r.checkMarker(t, core.CVOsc5A, m, 0.01)
	}
	col := r.table.Column(core.CVOsc5A)
	for m := 5; m < tuner.OctaveCount; m++ {
		want := 2*int64(col[m-1]) - int64(col[m-2])
		if want > 0xFFFF {
			want = 0xFFFF
		}
		if int64(col[m]) != want {
			t.Errorf("a5 marker %d = %d, want %d", m, col[m], want)
		}
	}
	for m := 2; m >= 0; m-- {
		want := 2*int64(col[m+1]) - int64(col[m+2])
		if want < 0 {
			want = 0
		}
		if int64(col[m]) != want {
			t.Errorf("a5 marker %d = %d, want %d", m, col[m], want)
		}
	}

	// neighbours are unaffected
	for _, cv := range []core.CV{core.CVOsc1B, core.CVOsc3B, core.CVOsc4A, core.CVOsc6A, core.CVFil2, core.CVFil5} {
		if report.Channels[cv].Err != nil {
			t.Errorf("%s: %v", cv, report.Channels[cv].Err)
		}
		r.checkMarker(t, cv, 4, 0.01)
	}
}
