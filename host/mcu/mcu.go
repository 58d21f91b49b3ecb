// Package mcu is the host side of the firmware's command link.
package mcu

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"p600/core"
	"p600/host/serial"
	"p600/protocol"
	"p600/tinycompress"
	"p600/tuner"
)

var (
	ErrNotConnected = errors.New("not connected to MCU")
	ErrTimeout      = errors.New("timed out waiting for response")
)

// Default response timeouts. A full calibration pass on the real board
// takes tens of seconds.
const (
	CommandTimeout = 2 * time.Second
	TuneTimeout    = 3 * time.Minute
)

// Message is one decoded response frame
type Message struct {
	Seq  uint8
	ID   uint16
	Args []uint32
}

// StatusError reports a command the firmware answered with a failure status
type StatusError struct {
	Cmd    uint16
	Status uint32
}

func (e *StatusError) Error() string {
	switch e.Status {
	case protocol.StatusUnknown:
		return fmt.Sprintf("command %d unknown to firmware", e.Cmd)
	case protocol.StatusStoreFailed:
		return fmt.Sprintf("command %d: calibration not saved", e.Cmd)
	}
	return fmt.Sprintf("command %d failed with status %d", e.Cmd, e.Status)
}

// TuneResult is the firmware's account of one channel after a pass
type TuneResult struct {
	CV        core.CV
	Measured  int
	Untunable bool
}

// MaxDictionary bounds the inflated identify dictionary
const MaxDictionary = 16 * 1024

// Dictionary is the firmware's self-description
type Dictionary struct {
	Version   string            `json:"version"`
	Config    map[string]string `json:"config"`
	Commands  map[string]int    `json:"commands"`
	Responses map[string]int    `json:"responses"`
}

// MCU represents a connection to the synth firmware
type MCU struct {
	port    serial.Port
	input   *protocol.FifoBuffer
	decoder protocol.FrameDecoder
	seq     uint8

	// Verbose logs every frame to Log
	Verbose bool
	Log     io.Writer

	// Connection state
	connected bool
}

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{
		input: protocol.NewFifoBuffer(4096),
	}
}

// Connect connects to the firmware via serial port
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	m.Attach(port)

	// Give the firmware time to initialize (if it just powered on)
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Attach uses an already open port
func (m *MCU) Attach(port serial.Port) {
	m.port = port
	m.input.Reset()
	m.connected = true
}

// Close closes the connection
func (m *MCU) Close() error {
	m.connected = false
	if m.port != nil {
		return m.port.Close()
	}
	return nil
}

// IsConnected returns whether the MCU is connected
func (m *MCU) IsConnected() bool {
	return m.connected
}

// Call sends one command and collects responses up to its done message,
// which is not returned.
func (m *MCU) Call(timeout time.Duration, id uint16, args ...uint32) ([]Message, error) {
	if !m.connected {
		return nil, ErrNotConnected
	}

	m.seq = (m.seq + 1) & protocol.MessageSeqMask
	out := protocol.NewScratchOutput()
	if err := protocol.EncodeMessage(out, m.seq, id, args...); err != nil {
		return nil, err
	}
	if err := m.port.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush port: %w", err)
	}
	if _, err := m.port.Write(out.Result()); err != nil {
		return nil, fmt.Errorf("failed to send command %d: %w", id, err)
	}
	m.logf("-> seq=%d id=%d args=%v\n", m.seq, id, args)

	var msgs []Message
	var done *Message
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 256)

	for done == nil {
		// frames for other commands do not extend the deadline
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("command %d: %w", id, ErrTimeout)
		}
		n, err := m.port.Read(buf)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if n == 0 {
			continue
		}

		m.input.Write(buf[:n])
		m.decoder.Decode(m.input, func(seq uint8, payload []byte) {
			msg, err := decode(seq, payload)
			if err != nil || seq != m.seq || done != nil {
				return
			}
			m.logf("<- seq=%d id=%d args=%v\n", msg.Seq, msg.ID, msg.Args)
			if msg.ID == protocol.RespDone && len(msg.Args) == 2 && uint16(msg.Args[0]) == id {
				done = &msg
				return
			}
			msgs = append(msgs, msg)
		})
	}

	if status := done.Args[1]; status != protocol.StatusOK {
		return msgs, &StatusError{Cmd: id, Status: status}
	}
	return msgs, nil
}

func decode(seq uint8, payload []byte) (Message, error) {
	id, rest, err := protocol.DecodeMessage(payload)
	if err != nil {
		return Message{}, err
	}
	msg := Message{Seq: seq, ID: id}
	for len(rest) > 0 {
		v, err := protocol.DecodeVLQUint(&rest)
		if err != nil {
			return Message{}, err
		}
		msg.Args = append(msg.Args, v)
	}
	return msg, nil
}

func (m *MCU) logf(format string, args ...interface{}) {
	if m.Verbose && m.Log != nil {
		fmt.Fprintf(m.Log, format, args...)
	}
}

// TuneSynth runs a calibration pass. On a store failure the results are
// returned together with the *StatusError.
func (m *MCU) TuneSynth() ([]TuneResult, error) {
	msgs, err := m.Call(TuneTimeout, protocol.CmdTuneSynth)
	var status *StatusError
	if err != nil && !errors.As(err, &status) {
		return nil, err
	}

	var results []TuneResult
	for _, msg := range msgs {
		if msg.ID != protocol.RespTuneResult || len(msg.Args) != 3 {
			continue
		}
		results = append(results, TuneResult{
			CV:        core.CV(msg.Args[0]),
			Measured:  int(msg.Args[1]),
			Untunable: msg.Args[2] != 0,
		})
	}
	return results, err
}

// GetTable reads the firmware's calibration table
func (m *MCU) GetTable() (*tuner.Table, error) {
	msgs, err := m.Call(CommandTimeout, protocol.CmdGetTable)
	if err != nil {
		return nil, err
	}

	var table tuner.Table
	rows := 0
	for _, msg := range msgs {
		if msg.ID != protocol.RespTableRow {
			continue
		}
		if len(msg.Args) != core.TunableCVCount+1 || msg.Args[0] >= tuner.OctaveCount {
			return nil, fmt.Errorf("malformed table row: %v", msg.Args)
		}
		oct := msg.Args[0]
		for cv := 0; cv < core.TunableCVCount; cv++ {
			table[oct][cv] = uint16(msg.Args[cv+1])
		}
		rows++
	}
	if rows != tuner.OctaveCount {
		return nil, fmt.Errorf("got %d table rows, want %d", rows, tuner.OctaveCount)
	}
	return &table, nil
}

// GetEvents reads the firmware's tuning event ring, oldest first
func (m *MCU) GetEvents() ([]core.TuneEvent, error) {
	msgs, err := m.Call(CommandTimeout, protocol.CmdGetEvents)
	if err != nil {
		return nil, err
	}

	var events []core.TuneEvent
	for _, msg := range msgs {
		if msg.ID != protocol.RespEvent || len(msg.Args) != 5 {
			continue
		}
		events = append(events, core.TuneEvent{
			EventType: uint8(msg.Args[0]),
			CV:        core.CV(msg.Args[1]),
			Clock:     msg.Args[2],
			Value1:    msg.Args[3],
			Value2:    msg.Args[4],
		})
	}
	return events, nil
}

// SetDebug switches the firmware's debug output
func (m *MCU) SetDebug(on bool) error {
	enable := uint32(0)
	if on {
		enable = 1
	}
	_, err := m.Call(CommandTimeout, protocol.CmdSetDebug, enable)
	return err
}

// Identify downloads and decodes the firmware dictionary
func (m *MCU) Identify() (*Dictionary, error) {
	var raw []byte
	for {
		offset := uint32(len(raw))
		msgs, err := m.Call(CommandTimeout, protocol.CmdIdentify, offset, protocol.IdentifyChunk)
		if err != nil {
			return nil, err
		}

		var chunk []uint32
		for _, msg := range msgs {
			if msg.ID == protocol.RespIdentify && len(msg.Args) > 0 && msg.Args[0] == offset {
				chunk = msg.Args[1:]
			}
		}
		for _, b := range chunk {
			raw = append(raw, byte(b))
		}
		if len(chunk) < protocol.IdentifyChunk {
			break
		}
		if len(raw) > MaxDictionary {
			return nil, fmt.Errorf("dictionary larger than %d bytes", MaxDictionary)
		}
	}

	data, err := tinycompress.Decompress(raw, make([]byte, MaxDictionary))
	if err != nil {
		return nil, fmt.Errorf("inflate dictionary: %w", err)
	}
	dict := &Dictionary{}
	if err := json.Unmarshal(data, dict); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	m.logf("identify: %s, %d commands, %d responses", dict.Version, len(dict.Commands), len(dict.Responses))
	return dict, nil
}

// ParseCV resolves a display name ("a1", "b6", "f3") to a tunable CV
func ParseCV(name string) (core.CV, error) {
	for cv := core.CV(0); int(cv) < core.TunableCVCount; cv++ {
		if cv.String() == name {
			return cv, nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", name)
}
