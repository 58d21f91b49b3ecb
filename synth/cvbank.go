// Package synth drives the voice board's outputs over the bus: the CV
// sample-and-holds through the shared DAC, the gate latch, and the front
// panel digits and LEDs.
package synth

import "p600/core"

// CVBank implements core.CVDriver. One DAC feeds every sample-and-hold;
// a CV is written by loading the DAC and briefly selecting its S&H.
type CVBank struct {
	bus   core.BusDriver
	codes [core.CVCount]uint16
	gates uint8
}

// NewCVBank returns a bank with every code at 0 and every gate off. Nothing
// reaches the board until the first Update.
func NewCVBank(bus core.BusDriver) *CVBank {
	return &CVBank{bus: bus}
}

// SetCV commands cv. With immediate set the S&H is refreshed now, otherwise
// at the next Update.
func (c *CVBank) SetCV(cv core.CV, code uint16, immediate bool) {
	c.codes[cv] = code
	if immediate {
		c.refresh(cv)
	}
}

func (c *CVBank) CV(cv core.CV) uint16 {
	return c.codes[cv]
}

// SetGate writes the gate latch.
func (c *CVBank) SetGate(g core.Gate, on bool) {
	if on {
		c.gates |= 1 << g
	} else {
		c.gates &^= 1 << g
	}
	c.bus.MemWrite(core.MemGates, c.gates)
}

// MaintainCV opens cv's S&H on its code, or closes every S&H.
func (c *CVBank) MaintainCV(cv core.CV, open bool) {
	if !open {
		c.bus.MemWrite(core.MemCVSelect, core.CVHold)
		return
	}
	c.loadDAC(c.codes[cv])
	c.bus.MemWrite(core.MemCVSelect, uint8(cv))
}

// Update refreshes every S&H once.
func (c *CVBank) Update() {
	for cv := core.CV(0); cv < core.CVCount; cv++ {
		c.refresh(cv)
	}
}

func (c *CVBank) refresh(cv core.CV) {
	c.loadDAC(c.codes[cv])
	c.bus.MemWrite(core.MemCVSelect, uint8(cv))
	c.bus.MemWrite(core.MemCVSelect, core.CVHold)
}

// loadDAC writes the high byte first; the low byte starts the conversion.
func (c *CVBank) loadDAC(code uint16) {
	c.bus.MemWrite(core.MemDACHigh, uint8(code>>8))
	c.bus.MemWrite(core.MemDACLow, uint8(code))
}
