// Package tinycompress writes and reads zlib streams made of stored
// (uncompressed) DEFLATE blocks. The output is valid zlib that any inflater
// accepts, produced without the tables a real compressor needs.
package tinycompress

import (
	"errors"
	"hash/adler32"
	"io"
)

// maxBlock is the largest stored block DEFLATE allows.
const maxBlock = 0xFFFF

var (
	ErrHeader   = errors.New("tinycompress: not a zlib stream")
	ErrBlock    = errors.New("tinycompress: unsupported or damaged block")
	ErrChecksum = errors.New("tinycompress: adler32 mismatch")
	ErrTooLarge = errors.New("tinycompress: output buffer too small")
)

// Writer accumulates input and emits the whole stream on Close.
type Writer struct {
	output   io.Writer
	inputBuf []byte
}

// NewWriter creates a Writer. sizeHint preallocates the input buffer so
// Write does not allocate on small targets.
func NewWriter(w io.Writer, sizeHint int) *Writer {
	return &Writer{
		output:   w,
		inputBuf: make([]byte, 0, sizeHint),
	}
}

// Write implements io.Writer
func (w *Writer) Write(p []byte) (n int, err error) {
	w.inputBuf = append(w.inputBuf, p...)
	return len(p), nil
}

// Close writes the header, the stored blocks and the Adler-32 trailer.
func (w *Writer) Close() error {
	if _, err := w.output.Write([]byte{0x78, 0x01}); err != nil {
		return err
	}

	data := w.inputBuf
	for {
		n := len(data)
		final := byte(1)
		if n > maxBlock {
			n = maxBlock
			final = 0
		}
		length := uint16(n)
		nlength := ^length
		header := []byte{final, byte(length), byte(length >> 8), byte(nlength), byte(nlength >> 8)}
		if _, err := w.output.Write(header); err != nil {
			return err
		}
		if _, err := w.output.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
		if final == 1 {
			break
		}
	}

	sum := adler32.Checksum(w.inputBuf)
	_, err := w.output.Write([]byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)})
	return err
}

// Decompress inflates a stream of stored blocks into buf and returns the
// filled part. Compressed blocks are rejected with ErrBlock.
func Decompress(compressed []byte, buf []byte) ([]byte, error) {
	if len(compressed) < 2+5+4 || compressed[0]&0x0F != 8 ||
		(uint16(compressed[0])<<8|uint16(compressed[1]))%31 != 0 {
		return nil, ErrHeader
	}
	pos := 2
	outPos := 0
	end := len(compressed) - 4

	for {
		if pos+5 > end {
			return nil, ErrBlock
		}
		header := compressed[pos]
		if header>>1&0x03 != 0 {
			return nil, ErrBlock
		}
		length := int(compressed[pos+1]) | int(compressed[pos+2])<<8
		nlength := int(compressed[pos+3]) | int(compressed[pos+4])<<8
		pos += 5
		if length != ^nlength&0xFFFF || pos+length > end {
			return nil, ErrBlock
		}
		if outPos+length > len(buf) {
			return nil, ErrTooLarge
		}
		copy(buf[outPos:], compressed[pos:pos+length])
		outPos += length
		pos += length

		if header&0x01 != 0 {
			break
		}
	}

	if pos != end {
		return nil, ErrBlock
	}
	want := uint32(compressed[end])<<24 | uint32(compressed[end+1])<<16 |
		uint32(compressed[end+2])<<8 | uint32(compressed[end+3])
	if adler32.Checksum(buf[:outPos]) != want {
		return nil, ErrChecksum
	}
	return buf[:outPos], nil
}
