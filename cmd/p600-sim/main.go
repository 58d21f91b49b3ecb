// Command p600-sim runs a calibration pass against the emulated voice
// board, prints the resulting table and its pitch error, and renders every
// tuned oscillator playing a scale to a WAV file.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"golang.org/x/term"

	"p600/core"
	"p600/firmware"
	"p600/firmware/config"
	"p600/host/mcu"
	"p600/storage"
	"p600/synth"
	"p600/tuner"
	"p600/voiceboard"
)

var (
	cfgPath   = flag.String("config", "", "Firmware JSON configuration, stock values when empty")
	seed      = flag.Int64("seed", 1, "Random seed for stage drift and jitter")
	drift     = flag.Float64("drift", 0.03, "Worst-case converter scale error (fraction)")
	jitter    = flag.Float64("jitter", 0.0001, "Period noise (fraction, standard deviation)")
	dead      = flag.String("dead", "", "Comma-separated channels to kill, e.g. a3,f6")
	output    = flag.String("output", "scale.wav", "Output WAV file path, empty to skip")
	rate      = flag.Int("sample-rate", 44100, "Render sample rate in Hz")
	noteLen   = flag.Float64("note-length", 0.15, "Seconds per rendered note")
	debug     = flag.Bool("debug", false, "Print tuner debug output and the event ring")
	showTable = flag.Bool("table", true, "Print the calibration table")
)

// scale is a major scale in semitones above the octave's C
var scale = []uint8{0, 2, 4, 5, 7, 9, 11, 12}

func main() {
	flag.Parse()

	fwcfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	cfg := voiceboard.DefaultConfig()
	cfg.Seed = *seed
	cfg.Drift = *drift
	cfg.Jitter = *jitter
	cfg.SyncTime = true
	board := voiceboard.New(cfg)

	if *dead != "" {
		for _, name := range strings.Split(*dead, ",") {
			cv, err := mcu.ParseCV(strings.TrimSpace(name))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(2)
			}
			board.Stages[cv].Dead = true
		}
	}

	if *debug || fwcfg.Debug {
		core.SetDebugWriter(func(s string) { fmt.Fprintln(os.Stderr, s) })
		core.SetDebugEnabled(true)
	}

	store, err := storage.NewEEPROMStore(board.EEPROM, fwcfg.Storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tcfg := fwcfg.Tuner
	var table tuner.Table
	table.Init(&tcfg)
	session := tuner.NewSession(tcfg, &table, board, synth.NewCVBank(board), synth.NewPanel(board), store)

	var progress *core.Timer
	if term.IsTerminal(int(os.Stdout.Fd())) {
		core.TimerInit()
		progress = progressTimer(session, board)
		core.ScheduleTimer(progress)
		session.OnYield = core.ProcessTimers
	}

	fmt.Printf("Tuning %d channels on an emulated board (seed %d, drift %.1f%%)...\n",
		core.TunableCVCount, *seed, *drift*100)
	report, err := session.TuneSynth()
	if progress != nil {
		core.CancelTimer(progress)
	}
	fmt.Printf("\rPass finished: %.1f s of board time, %d bus accesses\n", board.Seconds(), board.Accesses())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: calibration not saved: %v\n", err)
	}

	if *showTable {
		printTable(&table)
	}
	printReport(&report, &table, board, &tcfg)

	if *output != "" {
		if err := render(*output, &table, board, &report); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *output)
	}

	if len(report.Untunable()) > 0 {
		os.Exit(3)
	}
}

// loadConfig reads a firmware configuration file, or returns the stock one
func loadConfig(path string) (*firmware.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// progressTimer refreshes a status line ten times per second of board time
func progressTimer(session *tuner.Session, board *voiceboard.Board) *core.Timer {
	interval := core.TimerFromUS(100000)
	return &core.Timer{
		WakeTime: core.GetTime() + interval,
		Handler: func(t *core.Timer) uint8 {
			fmt.Printf("\r  tuning %-3s  %6.1f s", session.Current(), board.Seconds())
			t.WakeTime += interval
			return core.SF_RESCHEDULE
		},
	}
}

func printTable(table *tuner.Table) {
	fmt.Print("\noct")
	for cv := core.CV(0); int(cv) < core.TunableCVCount; cv++ {
		fmt.Printf(" %6s", cv)
	}
	fmt.Println()
	for oct := 0; oct < tuner.OctaveCount; oct++ {
		fmt.Printf("%3d", oct)
		for cv := 0; cv < core.TunableCVCount; cv++ {
			fmt.Printf(" %6d", table[oct][cv])
		}
		fmt.Println()
	}
	fmt.Println()
}

// printReport shows, per channel, the worst pitch error over the measured
// band in cents.
func printReport(report *tuner.Report, table *tuner.Table, board *voiceboard.Board, cfg *tuner.Config) {
	for _, c := range report.Channels {
		if c.Err != nil {
			fmt.Printf("  %-3s UNTUNABLE after %d markers: %v\n", c.CV, c.Measured, c.Err)
			continue
		}
		fam := cfg.Family(tuner.FamilyOf(c.CV))
		worst := 0.0
		for m := fam.LowMarker; m <= fam.HighMarker; m++ {
			got := board.Hz(c.CV, table[m][c.CV])
			cents := 1200 * math.Log2(got/board.NoteHz(float64(12*m)))
			if math.Abs(cents) > math.Abs(worst) {
				worst = cents
			}
		}
		fmt.Printf("  %-3s ok, worst error %+.2f cents\n", c.CV, worst)
	}
}

// render plays a major scale in octaves 3 to 5 on every tuned oscillator
func render(path string, table *tuner.Table, board *voiceboard.Board, report *tuner.Report) error {
	r := board.NewRenderer(*rate)
	var data []int

	for cv := core.CVOsc1A; cv <= core.CVOsc6B; cv++ {
		if report.Channels[cv].Err != nil {
			continue
		}
		for oct := uint8(3); oct <= 5; oct++ {
			for _, semi := range scale {
				code := table.CodeForNote(12*oct+semi, 0, cv)
				data = r.Note(data, cv, code, *noteLen)
			}
		}
		data = r.Rest(data, 0.3)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, *rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			SampleRate:  *rate,
			NumChannels: 1,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
