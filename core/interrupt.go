package core

// BlockInterrupts runs fn with periodic interrupts masked. The tuner uses it
// around a whole calibration pass so nothing perturbs the synchronizer's
// polling window.
func BlockInterrupts(fn func()) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	fn()
}
