//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"p600/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// InitClock seeds the core clock from the 1 MHz hardware timer and records
// the boot time.
func InitClock() {
	UpdateSystemTime()
	core.TimerInit()
}

// GetHardwareTime returns the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// GetHardwareUptime reads the full 64-bit counter
func GetHardwareUptime() uint64 {
	// high, low, high again to catch a carry between the reads
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// UpdateSystemTime copies the hardware time into the core clock. Called from
// the main loop and, during a pass, from the tuner's yield hook.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
