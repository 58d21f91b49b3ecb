package protocol

import (
	"testing"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{
		0, 1, -1, 95, 96, -32, -33,
		4095, -4096, 12287, 12288,
		5958, -5958, 65535, -65535,
		1000000, -1000000,
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}

		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}

		if len(data) != 0 {
			t.Errorf("VLQ decode didn't consume all bytes for value %d: %d bytes remaining", expected, len(data))
		}
	}
}

func TestVLQEncodedLength(t *testing.T) {
	testCases := []struct {
		value int32
		size  int
	}{
		{0, 1},
		{95, 1},
		{-32, 1},
		{96, 2},
		{5958, 2}, // one oscillator octave step
		{12287, 2},
		{12288, 3},
		{65535, 3},
	}

	for _, tc := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, tc.value)
		if got := len(output.Result()); got != tc.size {
			t.Errorf("value %d: expected %d bytes, got %d", tc.value, tc.size, got)
		}
	}
}

func TestVLQEncodeDecodeUint(t *testing.T) {
	testCases := []uint32{0, 1, 127, 128, 255, 1000, 65535, 1000000}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQUint(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}

		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	var empty []byte
	if _, err := DecodeVLQInt(&empty); err != ErrBufferTooSmall {
		t.Errorf("empty input: expected ErrBufferTooSmall, got %v", err)
	}

	truncated := []byte{0x81}
	if _, err := DecodeVLQInt(&truncated); err != ErrBufferTooSmall {
		t.Errorf("truncated input: expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQTooManyGroups(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("expected ErrInvalidVLQ, got %v", err)
	}
}
