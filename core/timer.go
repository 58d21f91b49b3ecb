package core

// TimerFreq is the system timer frequency (the RP2040 microsecond timer).
// The tuner's reference counter runs on its own 2 MHz clock on the board.
const (
	TimerFreq = 1000000
)

var (
	systemTicks uint32
	bootTime    uint32
)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (targets and the board emulator
// feed it from their clock)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// GetUptime returns ticks elapsed since TimerInit
func GetUptime() uint32 {
	return GetTime() - bootTime
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// TimerInit records the boot time
func TimerInit() {
	bootTime = GetTime()
}

// ProcessTimers runs every scheduled timer that is due. The tuner calls it
// from its yield hook so timers keep firing while interrupts are masked.
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}
