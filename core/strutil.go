package core

// itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}

	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// hex16 formats v as four upper-case hex digits, like the debug dumps of
// control codes
func hex16(v uint16) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{
		digits[v>>12&0xF],
		digits[v>>8&0xF],
		digits[v>>4&0xF],
		digits[v&0xF],
	})
}

// FormatCode renders a control code for debug output as "0xHHHH (ddddd)"
func FormatCode(code uint16) string {
	return "0x" + hex16(code) + " (" + utoa(uint32(code)) + ")"
}
