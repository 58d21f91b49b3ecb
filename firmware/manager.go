// Package firmware ties the tuner to the serial command link: it loads the
// stored calibration at boot and answers framed host commands.
package firmware

import (
	"errors"

	"p600/core"
	"p600/protocol"
	"p600/tuner"
)

var (
	ErrNotInitialized = errors.New("manager not initialized")
	ErrInitialized    = errors.New("already initialized")
	ErrStoreFailed    = errors.New("calibration not saved")
)

// OutputSize bounds the responses queued and not yet sent.
const OutputSize = 2048

// Manager coordinates the calibration session and the command link
type Manager struct {
	config  *Config
	table   tuner.Table
	session *tuner.Session

	// Serial interface
	input   *protocol.FifoBuffer
	output  *protocol.ScratchOutput
	decoder protocol.FrameDecoder
	seq     uint8

	lastReport tuner.Report
	loadErr    error

	initialized bool
}

// NewManager creates a manager with an existing config
func NewManager(cfg *Config) *Manager {
	return &Manager{
		config: cfg,
		input:  protocol.NewFifoBuffer(256),
		output: protocol.NewScratchOutputSize(OutputSize),
	}
}

// Initialize loads the stored table, falling back to the init ramp, builds
// the session and registers the command handlers. store may be nil.
func (m *Manager) Initialize(bus core.BusDriver, cvs core.CVDriver, display core.Display, store Store) error {
	if m.initialized {
		return ErrInitialized
	}
	if err := m.config.Tuner.Validate(); err != nil {
		return err
	}

	core.SetDebugEnabled(m.config.Debug)

	m.table.Init(&m.config.Tuner)
	var ts tuner.Store
	if store != nil {
		ts = store
		if err := store.Load(&m.table); err != nil {
			m.loadErr = err
			core.DebugPrintln("[FW] no stored calibration: " + err.Error())
		}
	}

	m.session = tuner.NewSession(m.config.Tuner, &m.table, bus, cvs, display, ts)

	if err := m.registerCommands(); err != nil {
		return err
	}

	m.initialized = true
	return nil
}

func (m *Manager) registerCommands() error {
	commands := []struct {
		id      uint16
		name    string
		format  string
		handler core.CommandHandler
	}{
		{protocol.CmdTuneSynth, "tune_synth", "", m.handleTuneSynth},
		{protocol.CmdGetTable, "get_table", "", m.handleGetTable},
		{protocol.CmdGetEvents, "get_events", "", m.handleGetEvents},
		{protocol.CmdSetDebug, "set_debug", "enable=%c", m.handleSetDebug},
		{protocol.CmdIdentify, "identify", "offset=%u count=%c", m.handleIdentify},
	}
	for _, c := range commands {
		if err := core.RegisterCommand(c.id, c.name, c.format, c.handler); err != nil {
			return err
		}
	}

	responses := []struct {
		id     uint16
		name   string
		format string
	}{
		{protocol.RespTuneResult, "tune_result", "cv=%c measured=%c untunable=%c"},
		{protocol.RespTableRow, "table_row", "octave=%c codes=%*u"},
		{protocol.RespEvent, "event", "type=%c cv=%c clock=%u v1=%u v2=%u"},
		{protocol.RespDone, "done", "cmd=%hu status=%c"},
		{protocol.RespIdentify, "identify_response", "offset=%u data=%*c"},
	}
	for _, r := range responses {
		if err := core.RegisterResponse(r.id, r.name, r.format); err != nil {
			return err
		}
	}

	core.RegisterConstant("OCTAVES", tuner.OctaveCount)
	core.RegisterConstant("TUNABLE_CVS", uint32(core.TunableCVCount))
	core.RegisterConstant("TICK_RATE", uint32(m.config.Tuner.TickRate))
	core.RegisterConstant("OSC_MARKERS", uint32(m.config.Tuner.Osc.LowMarker<<8|m.config.Tuner.Osc.HighMarker))
	core.RegisterConstant("FILTER_MARKERS", uint32(m.config.Tuner.Filter.LowMarker<<8|m.config.Tuner.Filter.HighMarker))
	core.GetGlobalDictionary().BuildDictionary()
	return nil
}

// ProcessByte processes a single byte of input (for serial streaming)
func (m *Manager) ProcessByte(b byte) error {
	return m.ProcessBytes([]byte{b})
}

// ProcessBytes buffers data and runs every complete frame in it.
func (m *Manager) ProcessBytes(data []byte) error {
	if !m.initialized {
		return ErrNotInitialized
	}

	for len(data) > 0 {
		n := m.input.Write(data)
		data = data[n:]
		m.decoder.Decode(m.input, m.processFrame)
		if n == 0 && len(data) > 0 {
			// a full buffer without a frame in it is noise
			m.input.Reset()
		}
	}
	return nil
}

// processFrame dispatches one command and always answers with a done
// message carrying its status.
func (m *Manager) processFrame(seq uint8, payload []byte) {
	m.seq = seq

	id, args, err := protocol.DecodeMessage(payload)
	if err != nil {
		m.decoder.Errors++
		return
	}

	err = core.GetGlobalRegistry().Dispatch(id, &args)
	m.send(protocol.RespDone, uint32(id), statusOf(err))
}

func statusOf(err error) uint32 {
	switch {
	case err == nil:
		return protocol.StatusOK
	case errors.Is(err, core.ErrUnknownCommand):
		return protocol.StatusUnknown
	case errors.Is(err, ErrStoreFailed):
		return protocol.StatusStoreFailed
	}
	return protocol.StatusError
}

func (m *Manager) send(id uint16, args ...uint32) {
	if err := protocol.EncodeMessage(m.output, m.seq, id, args...); err != nil {
		core.DebugPrintln("[FW] response dropped: " + err.Error())
	}
}

func (m *Manager) handleTuneSynth(data *[]byte) error {
	report, err := m.session.TuneSynth()
	m.lastReport = report

	for _, c := range report.Channels {
		untunable := uint32(0)
		if c.Err != nil {
			untunable = 1
		}
		m.send(protocol.RespTuneResult, uint32(c.CV), uint32(c.Measured), untunable)
	}

	if err != nil {
		core.DebugPrintln("[FW] save failed: " + err.Error())
		return ErrStoreFailed
	}
	return nil
}

func (m *Manager) handleGetTable(data *[]byte) error {
	var args [core.TunableCVCount + 1]uint32
	for oct := 0; oct < tuner.OctaveCount; oct++ {
		args[0] = uint32(oct)
		for cv := 0; cv < core.TunableCVCount; cv++ {
			args[cv+1] = uint32(m.table[oct][cv])
		}
		m.send(protocol.RespTableRow, args[:]...)
	}
	return nil
}

func (m *Manager) handleGetEvents(data *[]byte) error {
	core.Events(func(evt core.TuneEvent) {
		m.send(protocol.RespEvent, uint32(evt.EventType), uint32(evt.CV),
			evt.Clock, evt.Value1, evt.Value2)
	})
	return nil
}

func (m *Manager) handleSetDebug(data *[]byte) error {
	enable, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	core.SetDebugEnabled(enable != 0)
	return nil
}

// handleIdentify sends up to count bytes of the compressed dictionary from
// offset. A short or empty chunk marks the end.
func (m *Manager) handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if count > protocol.IdentifyChunk {
		count = protocol.IdentifyChunk
	}

	dict := core.GetGlobalDictionary().Generate()
	var args [protocol.IdentifyChunk + 1]uint32
	args[0] = offset
	n := 0
	for ; n < int(count) && int(offset)+n < len(dict); n++ {
		args[n+1] = uint32(dict[int(offset)+n])
	}
	m.send(protocol.RespIdentify, args[:n+1]...)
	return nil
}

// GetOutput returns any pending output and clears the buffer
func (m *Manager) GetOutput() []byte {
	if m.output.CurPosition() == 0 {
		return nil
	}

	result := m.output.Result()
	output := make([]byte, len(result))
	copy(output, result)
	m.output.Reset()
	return output
}

// PendingOutput returns the responses not yet sent. The slice is only valid
// until the next ConsumeOutput or ProcessBytes.
func (m *Manager) PendingOutput() []byte {
	return m.output.Result()
}

// ConsumeOutput drops the first n pending bytes once they are written.
func (m *Manager) ConsumeOutput(n int) {
	m.output.Consume(n)
}

// DropOutput discards every unsent response.
func (m *Manager) DropOutput() {
	m.output.Reset()
}

// Session exposes the calibration session, e.g. to hook its yield.
func (m *Manager) Session() *tuner.Session {
	return m.session
}

// Table returns the live calibration table
func (m *Manager) Table() *tuner.Table {
	return &m.table
}

// LastReport returns the report of the most recent pass
func (m *Manager) LastReport() tuner.Report {
	return m.lastReport
}

// LoadError returns why the stored table was not used at boot, or nil
func (m *Manager) LoadError() error {
	return m.loadErr
}

// FrameErrors returns the number of input frames dropped
func (m *Manager) FrameErrors() uint32 {
	return m.decoder.Errors
}
