//go:build !tinygo

package core

// getSystemTicks returns the current system ticks (host build)
func getSystemTicks() uint32 {
	return systemTicks
}

// setSystemTicks sets the system ticks (host build)
func setSystemTicks(ticks uint32) {
	systemTicks = ticks
}
