package core

// I/O space of the voice board.
const (
	IOTimerCh0     = 0x00 // 8253 channel 0 data
	IOTimerCh1     = 0x01 // 8253 channel 1 data (period counter)
	IOTimerCh2     = 0x02 // 8253 channel 2 data (one-shot gate)
	IOTimerControl = 0x03 // 8253 mode/control word
	IOKeyScanSel   = 0x08 // key scanner row select (unused by tuning)
	IOStatus       = 0x09 // misc status latch, bit 1 = synchronizer output
	IOKeyScanData  = 0x0A // key scanner row data (unused by tuning)
	IOLEDs         = 0x0B // LED latch
	IODigit0       = 0x0C // left seven-segment digit
	IODigit1       = 0x0D // right seven-segment digit
	IOSyncControl  = 0x0E // synchronizer flip-flop control latch
)

// Memory space of the voice board.
const (
	MemDACHigh  = 0x2000 // DAC upper bits, written first
	MemDACLow   = 0x2001 // DAC lower bits, latches the conversion
	MemCVSelect = 0x3000 // S&H multiplexer: CV index opens, CVHold closes
	MemGates    = 0x3800 // gate latch, one bit per Gate
)

// CVHold written to MemCVSelect deselects every sample-and-hold.
const CVHold = 0xFF

// StatusSyncBit is the status latch bit carrying the synchronizer output.
const StatusSyncBit = 1

// Synchronizer control latch lines.
const (
	SyncPreset  = 0x01 // flip-flop preset, active low
	SyncCountEn = 0x02 // reference counter enable
	SyncData    = 0x08 // flip-flop D input
	SyncClear   = 0x10 // flip-flop clear, active low
)

// 8253 control words used by the tuner.
const (
	TimerCh0Mode0 = 0x30 // ch0, mode 0, LSB+MSB, binary
	TimerCh1Mode0 = 0x70 // ch1, mode 0, LSB+MSB, binary
	TimerCh2Mode1 = 0xB2 // ch2, mode 1, LSB+MSB, binary
)

// LED identifies a front-panel LED on the LED latch.
type LED uint8

const (
	LEDTune LED = iota
	LEDRecord
	LEDPreset
)
