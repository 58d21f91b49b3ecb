package voiceboard

import (
	"errors"

	"tinygo.org/x/drivers/at24cx"
)

var ErrNoAck = errors.New("voiceboard: I2C address not acknowledged")

// EEPROM emulates an AT24Cxx on an I2C bus. It implements drivers.I2C:
// every transaction starts with a two-byte memory address, followed by
// data to write or a read.
type EEPROM struct {
	Address uint16
	mem     []byte
	ptr     int

	// Fail makes every transaction go unacknowledged.
	Fail bool
	// Writes counts data-carrying transactions.
	Writes int
}

// NewEEPROM returns a blank (all 0xFF) EEPROM of size bytes at the at24cx
// default address.
func NewEEPROM(size int) *EEPROM {
	e := &EEPROM{Address: at24cx.Address, mem: make([]byte, size)}
	for i := range e.mem {
		e.mem[i] = 0xFF
	}
	return e
}

// Tx implements drivers.I2C.
func (e *EEPROM) Tx(addr uint16, w, r []byte) error {
	if e.Fail || addr != e.Address {
		return ErrNoAck
	}

	if len(w) >= 2 {
		e.ptr = (int(w[0])<<8 | int(w[1])) % len(e.mem)
		if len(w) > 2 {
			e.Writes++
		}
		for _, b := range w[2:] {
			e.mem[e.ptr] = b
			e.ptr = (e.ptr + 1) % len(e.mem)
		}
	}

	for i := range r {
		r[i] = e.mem[e.ptr]
		e.ptr = (e.ptr + 1) % len(e.mem)
	}
	return nil
}

// Bytes exposes the memory, for inspection and corruption in tests.
func (e *EEPROM) Bytes() []byte {
	return e.mem
}
