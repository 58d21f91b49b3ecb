package synth

import "p600/core"

// Segment bits of a digit.
const (
	SegA  = 0x01
	SegB  = 0x02
	SegC  = 0x04
	SegD  = 0x08
	SegE  = 0x10
	SegF  = 0x20
	SegG  = 0x40
	SegDP = 0x80
)

// blinkPeriod is the number of Updates per blink phase.
const blinkPeriod = 32

var digitSegments = [10]uint8{
	0x3F, 0x06, 0x5B, 0x4F, 0x66, 0x6D, 0x7D, 0x07, 0x7F, 0x6F,
}

// letterSegments holds the usual seven-segment letter shapes, 0 where a
// letter has none.
var letterSegments = [26]uint8{
	'a' - 'a': 0x77, 'b' - 'a': 0x7C, 'c' - 'a': 0x58, 'd' - 'a': 0x5E,
	'e' - 'a': 0x79, 'f' - 'a': 0x71, 'g' - 'a': 0x3D, 'h' - 'a': 0x74,
	'i' - 'a': 0x04, 'j' - 'a': 0x1E, 'l' - 'a': 0x38, 'n' - 'a': 0x54,
	'o' - 'a': 0x5C, 'p' - 'a': 0x73, 'r' - 'a': 0x50, 's' - 'a': 0x6D,
	't' - 'a': 0x78, 'u' - 'a': 0x1C, 'y' - 'a': 0x6E,
}

// Segments returns the segment pattern for an ASCII character.
func Segments(ch byte) uint8 {
	switch {
	case ch >= '0' && ch <= '9':
		return digitSegments[ch-'0']
	case ch >= 'a' && ch <= 'z':
		return letterSegments[ch-'a']
	case ch >= 'A' && ch <= 'Z':
		return letterSegments[ch-'A']
	case ch == '-':
		return SegG
	case ch == '_':
		return SegD
	}
	return 0
}

// Panel implements core.Display on the two digit latches and the LED latch.
// Changes are pushed by Update.
type Panel struct {
	bus     core.BusDriver
	digits  [2]uint8
	leds    uint8
	blink   uint8
	updates uint32
}

func NewPanel(bus core.BusDriver) *Panel {
	return &Panel{bus: bus}
}

func (p *Panel) Clear() {
	p.digits = [2]uint8{}
}

func (p *Panel) SetASCII(left, right byte) {
	p.digits[0] = Segments(left)
	p.digits[1] = Segments(right)
}

func (p *Panel) SetLED(led core.LED, on, blink bool) {
	bit := uint8(1) << led
	if on {
		p.leds |= bit
	} else {
		p.leds &^= bit
	}
	if blink {
		p.blink |= bit
	} else {
		p.blink &^= bit
	}
}

// Update writes both digits and the LEDs, blinking LEDs dark on alternate
// phases.
func (p *Panel) Update() {
	p.updates++
	leds := p.leds
	if (p.updates/blinkPeriod)&1 != 0 {
		leds &^= p.blink
	}

	p.bus.IOWrite(core.IODigit0, p.digits[0])
	p.bus.IOWrite(core.IODigit1, p.digits[1])
	p.bus.IOWrite(core.IOLEDs, leds)
}

// Digits returns the pending segment patterns.
func (p *Panel) Digits() (uint8, uint8) {
	return p.digits[0], p.digits[1]
}
