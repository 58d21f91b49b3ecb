//go:build rp2040

package main

import (
	"machine"
)

var (
	debugUART    *machine.UART
	debugEnabled bool
)

// InitDebugUART brings up UART1 on GP20 (TX) and GP21 (RX) at 115200 baud.
// GP0-19 belong to the voice board bus.
func InitDebugUART() {
	debugUART = machine.UART1

	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO20,
		RX:       machine.GPIO21,
	})
	if err != nil {
		debugEnabled = false
		return
	}
	debugEnabled = true
	DebugPrintln("=== P600 tuner debug UART ===")
}

// DebugPrintln writes a string to the debug UART with newline
func DebugPrintln(s string) {
	if !debugEnabled || debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
