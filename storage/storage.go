// Package storage keeps the calibration table in an AT24Cxx I2C EEPROM.
//
// Block layout, big-endian:
//
//	"P6" version octaves cvs len(2) body crc16(2)
//
// The body holds, per CV, the marker 0 code followed by the difference to
// each next marker, all VLQ encoded. The CRC covers everything after the
// magic up to the end of the body.
package storage

import (
	"bytes"
	"errors"
	"strconv"

	"p600/core"
	"p600/protocol"
	"p600/tuner"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/at24cx"
)

const (
	Version    = 1
	headerSize = 7
	crcSize    = 2

	// MaxBlockSize bounds an encoded table: three VLQ bytes per code.
	MaxBlockSize = headerSize + tuner.OctaveCount*core.TunableCVCount*3 + crcSize
)

var magic = [2]byte{'P', '6'}

var (
	ErrNoCalibration = errors.New("storage: no calibration block")
	ErrVersion       = errors.New("storage: unsupported block version")
	ErrLayout        = errors.New("storage: table dimensions differ")
	ErrChecksum      = errors.New("storage: checksum mismatch")
	ErrCorrupt       = errors.New("storage: malformed block")
	ErrVerify        = errors.New("storage: read back differs from written block")
	ErrTooSmall      = errors.New("storage: EEPROM region too small")
)

// Config places the block in the EEPROM.
type Config struct {
	Address  uint16 // I2C address, 0 for the at24cx default
	Offset   uint16 // first byte of the block
	PageSize uint16 // write page, 0 for 32
	Size     uint16 // device size in bytes, 0 for 4096 (AT24C32)
}

// EEPROMStore implements tuner.Store on an AT24Cxx EEPROM.
type EEPROMStore struct {
	dev    at24cx.Device
	offset int64
	out    *protocol.ScratchOutput
	check  []byte
}

// NewEEPROMStore returns a store on bus. The bus must already be configured.
func NewEEPROMStore(bus drivers.I2C, cfg Config) (*EEPROMStore, error) {
	size := cfg.Size
	if size == 0 {
		size = 4096
	}
	if int(cfg.Offset)+MaxBlockSize > int(size) {
		return nil, ErrTooSmall
	}

	dev := at24cx.New(bus)
	if cfg.Address != 0 {
		dev.Address = cfg.Address
	}
	dev.Configure(at24cx.Config{
		PageSize:      cfg.PageSize,
		EndRAMAddress: size,
	})

	return &EEPROMStore{
		dev:    dev,
		offset: int64(cfg.Offset),
		out:    protocol.NewScratchOutputSize(MaxBlockSize),
		check:  make([]byte, MaxBlockSize),
	}, nil
}

// Save writes t and reads it back.
func (s *EEPROMStore) Save(t *tuner.Table) error {
	s.out.Reset()
	Encode(s.out, t)
	block := s.out.Result()

	if _, err := s.dev.WriteAt(block, s.offset); err != nil {
		return err
	}

	readBack := s.check[:len(block)]
	if _, err := s.dev.ReadAt(readBack, s.offset); err != nil {
		return err
	}
	if !bytes.Equal(readBack, block) {
		return ErrVerify
	}

	if core.IsDebugEnabled() {
		core.DebugPrintln("[STORE] saved calibration, " + strconv.Itoa(len(block)) + " bytes")
	}
	return nil
}

// Load reads the stored table into t. On any error t is left untouched, so a
// blank or damaged EEPROM keeps whatever t held (normally the init ramp).
func (s *EEPROMStore) Load(t *tuner.Table) error {
	header := s.check[:headerSize]
	if _, err := s.dev.ReadAt(header, s.offset); err != nil {
		return err
	}
	bodyLen, err := checkHeader(header)
	if err != nil {
		return err
	}

	block := s.check[:headerSize+bodyLen+crcSize]
	if _, err := s.dev.ReadAt(block[headerSize:], s.offset+headerSize); err != nil {
		return err
	}
	return Decode(block, t)
}

// Encode appends t's block to out.
func Encode(out protocol.OutputBuffer, t *tuner.Table) {
	start := out.CurPosition()
	out.Output([]byte{magic[0], magic[1], Version, tuner.OctaveCount, byte(core.TunableCVCount), 0, 0})

	bodyStart := out.CurPosition()
	for cv := core.CV(0); int(cv) < core.TunableCVCount; cv++ {
		prev := int32(0)
		for m := 0; m < tuner.OctaveCount; m++ {
			code := int32(t[m][cv])
			protocol.EncodeVLQInt(out, code-prev)
			prev = code
		}
	}
	bodyLen := out.CurPosition() - bodyStart
	out.Update(start+5, byte(bodyLen>>8))
	out.Update(start+6, byte(bodyLen))

	crc := protocol.CRC16(out.DataSince(start + len(magic)))
	out.Output([]byte{byte(crc >> 8), byte(crc)})
}

// Decode parses a block into t. t is only written when the whole block is
// valid.
func Decode(block []byte, t *tuner.Table) error {
	if len(block) < headerSize+crcSize {
		return ErrCorrupt
	}
	bodyLen, err := checkHeader(block[:headerSize])
	if err != nil {
		return err
	}
	end := headerSize + bodyLen
	if len(block) < end+crcSize {
		return ErrCorrupt
	}

	stored := uint16(block[end])<<8 | uint16(block[end+1])
	if protocol.CRC16(block[len(magic):end]) != stored {
		return ErrChecksum
	}

	var decoded tuner.Table
	body := block[headerSize:end]
	for cv := core.CV(0); int(cv) < core.TunableCVCount; cv++ {
		code := int32(0)
		for m := 0; m < tuner.OctaveCount; m++ {
			delta, err := protocol.DecodeVLQInt(&body)
			if err != nil {
				return ErrCorrupt
			}
			code += delta
			if code < 0 || code > core.MaxCode {
				return ErrCorrupt
			}
			decoded[m][cv] = uint16(code)
		}
	}
	if len(body) != 0 {
		return ErrCorrupt
	}

	*t = decoded
	return nil
}

func checkHeader(h []byte) (int, error) {
	if h[0] != magic[0] || h[1] != magic[1] {
		return 0, ErrNoCalibration
	}
	if h[2] != Version {
		return 0, ErrVersion
	}
	if h[3] != tuner.OctaveCount || h[4] != byte(core.TunableCVCount) {
		return 0, ErrLayout
	}
	bodyLen := int(h[5])<<8 | int(h[6])
	if headerSize+bodyLen+crcSize > MaxBlockSize {
		return 0, ErrCorrupt
	}
	return bodyLen, nil
}
