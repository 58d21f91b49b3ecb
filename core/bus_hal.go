package core

// BusDriver is the abstract voice-board bus interface that core code uses.
// Implementations own the electrical encoding and the settling delay that
// follows every access.
type BusDriver interface {
	// IOWrite writes one byte to the 8-bit I/O address space.
	IOWrite(addr uint8, value uint8)

	// IORead reads one byte from the 8-bit I/O address space.
	IORead(addr uint8) uint8

	// MemWrite writes one byte to the 16-bit memory-mapped address space
	// (DAC, CV multiplexer and gate latches).
	MemWrite(addr uint16, value uint8)
}

// Global singleton used by target code.
var busDriver BusDriver

// SetBusDriver is called by target-specific code to register its driver.
func SetBusDriver(d BusDriver) {
	busDriver = d
}

// MustBus returns the configured driver or panics if missing.
func MustBus() BusDriver {
	if busDriver == nil {
		panic("bus driver not configured")
	}
	return busDriver
}
