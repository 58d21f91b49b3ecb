// Package tuner calibrates the voice board's oscillators and filters. It
// measures the period each analog stage produces with the board's
// synchronizer and reference counter, searches for the control code that
// reproduces each octave marker's pitch, and keeps the resulting calibration
// table used to turn notes into control codes.
package tuner

import (
	"errors"

	"p600/core"
)

// OctaveCount is the number of octave markers (C notes) in the table.
const OctaveCount = 11

// Family groups the tunable CVs sharing a marker band and precision.
type Family uint8

const (
	FamilyOsc Family = iota
	FamilyFilter
)

// FamilyOf returns the family a tunable CV belongs to.
func FamilyOf(cv core.CV) Family {
	if cv < core.CVFil1 {
		return FamilyOsc
	}
	return FamilyFilter
}

func (f Family) String() string {
	if f == FamilyOsc {
		return "osc"
	}
	return "filter"
}

// FamilyConfig holds the per-family tuning parameters.
type FamilyConfig struct {
	// LowMarker and HighMarker bound the band measured directly.
	LowMarker  int
	HighMarker int

	// GuardMarker names the octave whose code acts as the search floor
	// (guard note = 12 * GuardMarker).
	GuardMarker int

	// Precision is the averaging exponent: a search at marker m averages
	// 2^(Precision+m) cycles.
	Precision int

	// Placeholder ramp loaded by Table.Init: InitOffset + m*65536/InitDivisor.
	InitOffset  uint32
	InitDivisor uint32

	// PeriodFallsWithCode gives the converter polarity. When set, a period
	// longer than the target raises the estimate.
	PeriodFallsWithCode bool
}

// Config holds the tuning parameters.
type Config struct {
	TickRate      float64 // reference counter clock, Hz
	LowestHz      float64 // frequency of marker 0
	PollBudget    int     // status reads per synchronizer step
	MaxTimeouts   int     // timeouts before a channel is untunable
	SearchBits    int     // SAR iterations
	SettleUpdates int     // CV refreshes before the first measurement

	Osc    FamilyConfig
	Filter FamilyConfig
}

var (
	ErrBadMarkers  = errors.New("tuner: marker band out of range")
	ErrBadSearch   = errors.New("tuner: search bits must be 1..16")
	ErrBadBudget   = errors.New("tuner: poll budget and max timeouts must be positive")
	ErrBadTickRate = errors.New("tuner: tick rate and lowest frequency must be positive")
)

// DefaultConfig returns the parameters of the stock board: a 2 MHz
// reference, marker 0 four octaves below middle C.
func DefaultConfig() Config {
	return Config{
		TickRate:      2000000,
		LowestHz:      261.63 / 16,
		PollBudget:    0xFFFF,
		MaxTimeouts:   5,
		SearchBits:    14,
		SettleUpdates: 25,
		Osc: FamilyConfig{
			LowMarker:           3,
			HighMarker:          6,
			GuardMarker:         1,
			Precision:           -3,
			InitOffset:          5000,
			InitDivisor:         11,
			PeriodFallsWithCode: true,
		},
		Filter: FamilyConfig{
			LowMarker:           4,
			HighMarker:          7,
			GuardMarker:         3,
			Precision:           -3,
			InitOffset:          10000,
			InitDivisor:         22,
			PeriodFallsWithCode: true,
		},
	}
}

// Family returns the parameters of family f.
func (c *Config) Family(f Family) *FamilyConfig {
	if f == FamilyOsc {
		return &c.Osc
	}
	return &c.Filter
}

// Validate checks that the configuration can drive a pass.
func (c *Config) Validate() error {
	if c.TickRate <= 0 || c.LowestHz <= 0 {
		return ErrBadTickRate
	}
	if c.SearchBits < 1 || c.SearchBits > 16 {
		return ErrBadSearch
	}
	if c.PollBudget < 1 || c.MaxTimeouts < 1 {
		return ErrBadBudget
	}
	for _, f := range []*FamilyConfig{&c.Osc, &c.Filter} {
		// extrapolation needs two measured markers inside the table
		if f.LowMarker < 0 || f.HighMarker <= f.LowMarker || f.HighMarker >= OctaveCount {
			return ErrBadMarkers
		}
		if f.GuardMarker < 0 || f.GuardMarker >= OctaveCount || f.InitDivisor == 0 {
			return ErrBadMarkers
		}
	}
	return nil
}
