package config

import (
	"encoding/json"

	"p600/firmware"
	"p600/storage"
	"p600/tuner"
)

// LoadConfig parses a JSON configuration and returns a firmware Config.
// Fields missing from the JSON keep the stock values.
func LoadConfig(jsonData []byte) (*firmware.Config, error) {
	config := DefaultConfig()

	err := json.Unmarshal(jsonData, config)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	applyDefaults(config)

	if err := config.Tuner.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyDefaults replaces explicit zeros that cannot drive a pass
func applyDefaults(config *firmware.Config) {
	def := tuner.DefaultConfig()
	t := &config.Tuner

	if t.TickRate == 0 {
		t.TickRate = def.TickRate
	}
	if t.LowestHz == 0 {
		t.LowestHz = def.LowestHz
	}
	if t.PollBudget == 0 {
		t.PollBudget = def.PollBudget
	}
	if t.MaxTimeouts == 0 {
		t.MaxTimeouts = def.MaxTimeouts
	}
	if t.SearchBits == 0 {
		t.SearchBits = def.SearchBits
	}

	// Placeholder ramps need a divisor
	if t.Osc.InitDivisor == 0 {
		t.Osc.InitDivisor = def.Osc.InitDivisor
	}
	if t.Filter.InitDivisor == 0 {
		t.Filter.InitDivisor = def.Filter.InitDivisor
	}

	if config.Storage.Size == 0 {
		config.Storage.Size = 4096 // AT24C32
	}
	if config.Storage.PageSize == 0 {
		config.Storage.PageSize = 32
	}
}

// DefaultConfig returns the configuration of the stock board: the tuner's
// default parameters and the calibration block at the start of an AT24C32.
func DefaultConfig() *firmware.Config {
	return &firmware.Config{
		Tuner: tuner.DefaultConfig(),
		// Address 0 selects the at24cx default
		Storage: storage.Config{
			PageSize: 32,
			Size:     4096,
		},
	}
}
