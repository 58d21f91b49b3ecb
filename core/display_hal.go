package core

// Display is the front-panel feedback interface: two seven-segment digits
// and the LED latch. Calls have no functional effect on tuning.
type Display interface {
	// Clear blanks both digits.
	Clear()

	// SetASCII shows two characters on the digits.
	SetASCII(left, right byte)

	// SetLED switches an LED. Blink is honoured by the next Update calls.
	SetLED(led LED, on, blink bool)

	// Update pushes pending segment and LED changes to the board.
	Update()
}

// ShowCV puts the display name of cv ("a1", "f6") on the digits.
func ShowCV(d Display, cv CV) {
	name := cv.String()
	if len(name) < 2 {
		return
	}
	d.SetASCII(name[0], name[1])
}
