package firmware

import (
	"p600/storage"
	"p600/tuner"
)

// Config is the complete firmware configuration.
type Config struct {
	Tuner   tuner.Config   // calibration parameters
	Storage storage.Config // EEPROM placement of the calibration block
	Debug   bool           // debug output from boot
}

// Store persists the calibration table across power cycles.
type Store interface {
	tuner.Store
	Load(t *tuner.Table) error
}
