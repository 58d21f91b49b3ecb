package protocol

import "errors"

var (
	ErrFrameTooLarge = errors.New("frame payload too large")
	ErrEmptyPayload  = errors.New("frame payload empty")
)

// MaxPayload is the largest payload a single frame carries
const MaxPayload = MessageLengthMax - MessageLengthMin

// EncodeFrame appends one frame carrying payload to output:
// length, sequence, payload, CRC16 (big-endian), sync byte.
func EncodeFrame(output OutputBuffer, seq uint8, payload []byte) error {
	msgLen := len(payload) + MessageLengthMin
	if msgLen > MessageLengthMax {
		return ErrFrameTooLarge
	}

	start := output.CurPosition()
	output.Output([]byte{byte(msgLen), MessageDest | (seq & MessageSeqMask)})
	output.Output(payload)

	crc := CRC16(output.DataSince(start))
	output.Output([]byte{byte(crc >> 8), byte(crc), MessageValueSync})
	return nil
}

// EncodeMessage builds a payload of the message id followed by args as VLQ
// and appends it to output as one frame.
func EncodeMessage(output OutputBuffer, seq uint8, id uint16, args ...uint32) error {
	var buf [MaxPayload + 8]byte
	payload := ScratchOutput{buf: buf[:]}

	EncodeVLQUint(&payload, uint32(id))
	for _, a := range args {
		EncodeVLQUint(&payload, a)
	}
	if payload.Overflow() || payload.CurPosition() > MaxPayload {
		return ErrFrameTooLarge
	}
	return EncodeFrame(output, seq, payload.Result())
}

// DecodeMessage splits a frame payload into its message id and arguments
func DecodeMessage(payload []byte) (uint16, []byte, error) {
	if len(payload) == 0 {
		return 0, nil, ErrEmptyPayload
	}
	id, err := DecodeVLQUint(&payload)
	if err != nil {
		return 0, nil, err
	}
	return uint16(id), payload, nil
}

// FrameDecoder extracts frames from a byte stream, resynchronizing on the
// sync byte after corrupt or truncated input.
type FrameDecoder struct {
	desynced bool
	// Errors counts frames dropped for bad length, sequence or CRC
	Errors uint32
}

// Decode consumes every complete frame in input, calls fn with its
// sequence number and payload, and pops the consumed bytes. A trailing
// partial frame is left in input for the next call. Returns the number of
// frames delivered.
func (d *FrameDecoder) Decode(input InputBuffer, fn func(seq uint8, payload []byte)) int {
	data := input.Data()
	original := len(data)
	frames := 0

	for len(data) > 0 {
		if d.desynced {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			d.desynced = false
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			d.drop()
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			d.drop()
			continue
		}

		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.drop()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.drop()
			continue
		}

		fn(seq&MessageSeqMask, data[MessageHeaderSize:msgLen-MessageTrailerSize])
		frames++
		data = data[msgLen:]
	}

	input.Pop(original - len(data))
	return frames
}

func (d *FrameDecoder) drop() {
	d.desynced = true
	d.Errors++
}
