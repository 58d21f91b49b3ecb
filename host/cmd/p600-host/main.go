package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"p600/core"
	"p600/host/mcu"
	"p600/host/serial"
	"p600/protocol"
	"p600/tuner"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	verbose = flag.Bool("verbose", false, "Enable verbose output")
)

// session keeps the last table read so "note" works offline
type session struct {
	conn  *mcu.MCU
	table *tuner.Table
	dict  *mcu.Dictionary
}

func main() {
	flag.Parse()

	fmt.Println("P600 Host - synth calibration console")
	fmt.Println("=====================================")

	conn := mcu.NewMCU()
	conn.Verbose = *verbose
	conn.Log = os.Stderr

	fmt.Printf("Connecting to firmware on %s...\n", *device)
	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	if err := conn.ConnectWithConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("Connected successfully!")

	s := &session{conn: conn}
	if err := s.identify(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to identify firmware: %v\n", err)
		os.Exit(1)
	}

	// Interactive command loop
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts, err := shlex.Split(strings.TrimSpace(scanner.Text()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}

		cmd, args := parts[0], parts[1:]
		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "tune":
			err = s.tune()

		case "table":
			err = s.printTable()

		case "dict":
			s.printDictionary()

		case "events":
			err = s.printEvents()

		case "note":
			err = s.note(args)

		case "debug":
			if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
				err = fmt.Errorf("usage: debug on|off")
				break
			}
			err = conn.SetDebug(args[0] == "on")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  tune              - Run a full calibration pass")
	fmt.Println("  table             - Print the calibration table")
	fmt.Println("  events            - Print the last tuning events")
	fmt.Println("  note <n> <ch>     - Code for note n (0 = lowest C) on channel a1..f6")
	fmt.Println("  debug on|off      - Switch firmware debug output")
	fmt.Println("  dict              - Print the firmware dictionary")
	fmt.Println("  quit/exit/q       - Exit the program")
	fmt.Println()
}

// identify fetches the dictionary and checks the firmware speaks the same
// message IDs as this host.
func (s *session) identify() error {
	dict, err := s.conn.Identify()
	if err != nil {
		return err
	}
	s.dict = dict
	fmt.Printf("Firmware %s\n", dict.Version)

	if got := dict.Config["OCTAVES"]; got != strconv.Itoa(tuner.OctaveCount) {
		return fmt.Errorf("firmware table has %s octaves, host expects %d", got, tuner.OctaveCount)
	}
	if got := dict.Commands["tune_synth"]; got != int(protocol.CmdTuneSynth) {
		return fmt.Errorf("firmware tune_synth id %d, host expects %d", got, protocol.CmdTuneSynth)
	}
	return nil
}

func (s *session) printDictionary() {
	fmt.Printf("version: %s\n", s.dict.Version)
	printSorted("config", s.dict.Config)
	printSorted("commands", s.dict.Commands)
	printSorted("responses", s.dict.Responses)
}

func printSorted[V any](title string, m map[string]V) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-32s %v\n", k, m[k])
	}
}

func (s *session) tune() error {
	fmt.Println("Tuning, this takes a while...")
	results, err := s.conn.TuneSynth()
	for _, r := range results {
		state := "ok"
		if r.Untunable {
			state = "UNTUNABLE"
		}
		fmt.Printf("  %s  measured %d  %s\n", r.CV, r.Measured, state)
	}
	s.table = nil
	return err
}

func (s *session) fetchTable() error {
	if s.table != nil {
		return nil
	}
	table, err := s.conn.GetTable()
	if err != nil {
		return err
	}
	s.table = table
	return nil
}

func (s *session) printTable() error {
	s.table = nil
	if err := s.fetchTable(); err != nil {
		return err
	}

	fmt.Print("oct")
	for cv := core.CV(0); int(cv) < core.TunableCVCount; cv++ {
		fmt.Printf(" %6s", cv)
	}
	fmt.Println()
	for oct := 0; oct < tuner.OctaveCount; oct++ {
		fmt.Printf("%3d", oct)
		for cv := 0; cv < core.TunableCVCount; cv++ {
			fmt.Printf(" %6d", s.table[oct][cv])
		}
		fmt.Println()
	}
	return nil
}

func (s *session) printEvents() error {
	events, err := s.conn.GetEvents()
	if err != nil {
		return err
	}
	for _, evt := range events {
		fmt.Printf("  %-12s cv=%-4s clock=%-10d v1=%-6d v2=%d\n",
			core.EventName(evt.EventType), evt.CV, evt.Clock, evt.Value1, evt.Value2)
	}
	fmt.Printf("%d events\n", len(events))
	return nil
}

func (s *session) note(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: note <n> <channel>")
	}
	n, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return fmt.Errorf("bad note %q: %w", args[0], err)
	}
	cv, err := mcu.ParseCV(args[1])
	if err != nil {
		return err
	}
	if err := s.fetchTable(); err != nil {
		return err
	}

	code := s.table.CodeForNote(uint8(n), 0, cv)
	fmt.Printf("  note %d on %s: %s\n", n, cv, core.FormatCode(code))
	return nil
}
