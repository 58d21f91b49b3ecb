package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TuneEvent captures one step of a calibration pass for post-mortem analysis
type TuneEvent struct {
	EventType uint8  // Event type code
	CV        CV     // CV under test
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtTuneStart    = 1 // pass started
	EvtChannelStart = 2 // channel selected, v1 = lowest marker, v2 = highest marker
	EvtSyncTimeout  = 3 // status poll timed out, v1 = step, v2 = timeout count
	EvtMeasure      = 4 // SAR iteration, v1 = code, v2 = period (Q8 ticks)
	EvtCommit       = 5 // marker committed, v1 = marker, v2 = code
	EvtUntunable    = 6 // channel failed, v1 = marker, v2 = timeout count
	EvtExtrapolate  = 7 // markers derived, v1 = first below the band, v2 = first above
	EvtTuneDone     = 8 // pass finished, v1 = untunable channel count
)

const (
	EventRingSize = 64 // Keep the last 64 events
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	eventRing     [EventRingSize]TuneEvent
	eventRingHead uint8
	eventCount    uint32
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEvent captures a tuning event in the ring buffer. It never blocks
// and never allocates, so it is safe inside the measurement loop.
func RecordEvent(eventType uint8, cv CV, value1, value2 uint32) {
	idx := eventRingHead
	eventRing[idx] = TuneEvent{
		EventType: eventType,
		CV:        cv,
		Clock:     GetTime(),
		Value1:    value1,
		Value2:    value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
	eventCount++
}

// Events calls fn for every captured event, oldest first
func Events(fn func(TuneEvent)) {
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.EventType == 0 {
			continue
		}
		fn(evt)
	}
}

// EventCount returns how many events were recorded since the last clear
func EventCount() uint32 {
	return eventCount
}

// EventName returns the mnemonic of an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtTuneStart:
		return "TUNE_START"
	case EvtChannelStart:
		return "CHANNEL"
	case EvtSyncTimeout:
		return "SYNC_TIMEOUT"
	case EvtMeasure:
		return "MEASURE"
	case EvtCommit:
		return "COMMIT"
	case EvtUntunable:
		return "UNTUNABLE!"
	case EvtExtrapolate:
		return "EXTRAPOLATE"
	case EvtTuneDone:
		return "TUNE_DONE"
	}
	return "UNKNOWN"
}

// DumpEventRing outputs the event ring (call after a pass or on error)
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TUNE] === Event Ring Dump ===")
	debugPrintln("[TUNE] Total events recorded: " + utoa(eventCount))
	Events(func(evt TuneEvent) {
		debugPrintln("[TUNE] " + EventName(evt.EventType) +
			" cv=" + evt.CV.String() +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	})
	debugPrintln("[TUNE] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	for i := range eventRing {
		eventRing[i] = TuneEvent{}
	}
	eventRingHead = 0
	eventCount = 0
}
