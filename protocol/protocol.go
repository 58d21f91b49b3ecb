// Package protocol implements the framed command link between the firmware
// and host tools, and the VLQ/CRC16 primitives shared with calibration
// storage.
package protocol

// Version represents the firmware protocol version
const Version = "0.1.0"

// Frame layout constants
const (
	MessageMax         = 512 // Scratch buffer size, several frames per flush
	MessageHeaderSize  = 2   // length + sequence
	MessageTrailerSize = 3   // CRC16 + sync
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10

	// Message sequence masks
	MessageSeqMask = 0x0F
)
