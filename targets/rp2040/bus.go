//go:build rp2040

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Voice board bus wiring. AD0-7 carry the low address byte while ALE is
// high and the data byte afterwards; A8-15 and IORQ are held for the whole
// access.
//
//	GP0-7   AD0-AD7
//	GP8-15  A8-A15
//	GP16    IORQ (low selects the I/O space)
//	GP17    ALE
//	GP18    WR (active low)
//	GP19    RD (active low)
const (
	busBasePin  = machine.GPIO0
	busPinCount = 20
)

// Line bits of a bus state, relative to busBasePin.
const (
	lineIORQ = 1 << 16
	lineALE  = 1 << 17
	lineWR   = 1 << 18
	lineRD   = 1 << 19

	lineIdle = lineWR | lineRD
)

// Command word, shifted out LSB first:
//
//	bits 0-7   AD pin directions (1 = drive)
//	bits 8-27  bus state for the 20 bus pins
//	bit 28     sample AD after the state settles
const (
	adDrive    = 0xFF
	adRelease  = 0x00
	wordSample = 1 << 28
)

// buildBusProgram returns the PIO program that applies one bus state per
// command word, optionally pushing the AD lines to the RX FIFO.
func buildBusProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),                             // 0: pull block
		asm.Out(rp2pio.OutDestPindirs, 8).Encode(),                 // 1: out pindirs, 8
		asm.Out(rp2pio.OutDestPins, busPinCount).Delay(7).Encode(), // 2: out pins, 20 [7]
		asm.Out(rp2pio.OutDestX, 1).Encode(),                       // 3: out x, 1
		asm.Jmp(6, rp2pio.JmpXNZeroDec).Encode(),                   // 4: jmp x--, 6
		asm.Jmp(0, rp2pio.JmpAlways).Encode(),                      // 5: jmp 0
		asm.In(rp2pio.InSrcPins, 8).Encode(),                       // 6: in pins, 8
		asm.Push(false, true).Encode(),                             // 7: push block
		// .wrap
	}
}

const busPIOOrigin = 0 // jump targets are absolute

// PIOBus implements core.BusDriver with a PIO state machine strobing the
// voice board bus. Writes are posted through the TX FIFO; reads wait for
// their sample on the RX FIFO, which also orders them after pending writes.
type PIOBus struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	offset uint8
}

// NewPIOBus claims state machine smNum of PIO pioNum for the bus.
func NewPIOBus(pioNum, smNum uint8) *PIOBus {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	return &PIOBus{
		pio: pioHW,
		sm:  pioHW.StateMachine(smNum),
	}
}

// Init loads the program and parks the bus idle.
func (b *PIOBus) Init() error {
	b.sm.TryClaim()

	program := buildBusProgram()
	offset, err := b.pio.AddProgram(program, busPIOOrigin)
	if err != nil {
		return err
	}
	b.offset = offset

	for i := 0; i < busPinCount; i++ {
		(busBasePin + machine.Pin(i)).Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(busBasePin, busPinCount)
	cfg.SetInPins(busBasePin)
	cfg.SetOutShift(true, false, 32)
	cfg.SetInShift(false, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	// 125 MHz / 8: one bus state lasts about half a microsecond
	cfg.SetClkDivIntFrac(8, 0)

	b.sm.Init(offset, cfg)

	b.sm.SetPindirsConsecutive(busBasePin, busPinCount, true)
	b.sm.SetPinsConsecutive(busBasePin, busPinCount, false)
	b.sm.SetPinsConsecutive(busBasePin+18, 2, true) // WR, RD high

	b.sm.SetEnabled(true)
	return nil
}

func (b *PIOBus) put(dirs uint8, state uint32, sample bool) {
	w := uint32(dirs) | state<<8
	if sample {
		w |= wordSample
	}
	for b.sm.IsTxFIFOFull() {
	}
	b.sm.TxPut(w)
}

// latch presents a full address and drops ALE, leaving A8-15 and the
// space select on the bus.
func (b *PIOBus) latch(addr uint16, space uint32) uint32 {
	state := uint32(addr) | space | lineIdle
	b.put(adDrive, state|lineALE, false)
	b.put(adDrive, state, false)
	return state &^ 0xFF
}

func (b *PIOBus) write(addr uint16, space uint32, value uint8) {
	state := b.latch(addr, space) | uint32(value)
	b.put(adDrive, state&^lineWR, false)
	b.put(adDrive, state, false)
}

func (b *PIOBus) IOWrite(addr uint8, value uint8) {
	b.write(uint16(addr), 0, value)
}

func (b *PIOBus) MemWrite(addr uint16, value uint8) {
	b.write(addr, lineIORQ, value)
}

func (b *PIOBus) IORead(addr uint8) uint8 {
	state := b.latch(uint16(addr), 0)
	b.put(adRelease, state&^lineRD, false)
	b.put(adRelease, state&^lineRD, true)
	b.put(adDrive, state, false)

	for b.sm.IsRxFIFOEmpty() {
	}
	return uint8(b.sm.RxGet())
}

// Reset drops queued accesses and returns the bus to idle.
func (b *PIOBus) Reset() {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Restart()
	b.sm.SetPinsConsecutive(busBasePin+18, 2, true)
	b.sm.SetEnabled(true)
}
