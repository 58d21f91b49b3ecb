package core

// CV identifies a control-voltage output of the voice board.
// Tunable CVs come first so they can index the calibration table directly.
type CV uint8

const VoiceCount = 6

const (
	CVOsc1A CV = iota
	CVOsc2A
	CVOsc3A
	CVOsc4A
	CVOsc5A
	CVOsc6A
	CVOsc1B
	CVOsc2B
	CVOsc3B
	CVOsc4B
	CVOsc5B
	CVOsc6B
	CVFil1
	CVFil2
	CVFil3
	CVFil4
	CVFil5
	CVFil6

	CVAmp1
	CVAmp2
	CVAmp3
	CVAmp4
	CVAmp5
	CVAmp6
	CVVolA
	CVVolB
	CVMasterVol
	CVResonance
	CVAPW
	CVBPW
	CVPModOscB
	CVExtFil

	CVCount
)

// TunableCVCount is the number of CVs that carry a calibration table column.
const TunableCVCount = int(CVFil1) + VoiceCount

// MaxCode is the full-scale control code.
const MaxCode = 0xFFFF

// Tunable reports whether cv has a calibration table column.
func (cv CV) Tunable() bool {
	return int(cv) < TunableCVCount
}

// Voice returns the voice index (0-based) of a per-voice CV, or -1.
func (cv CV) Voice() int {
	switch {
	case cv < CVOsc1B:
		return int(cv - CVOsc1A)
	case cv < CVFil1:
		return int(cv - CVOsc1B)
	case cv < CVAmp1:
		return int(cv - CVFil1)
	case cv < CVVolA:
		return int(cv - CVAmp1)
	}
	return -1
}

// AmpOf returns the amplifier CV of the voice cv belongs to.
func AmpOf(cv CV) CV {
	return CVAmp1 + CV(cv.Voice())
}

// String returns the two-character display name used on the seven-segment
// display ("a1", "b6", "f3") or "cv<n>" for non-tunable CVs.
func (cv CV) String() string {
	switch {
	case cv < CVOsc1B:
		return "a" + itoa(int(cv-CVOsc1A)+1)
	case cv < CVFil1:
		return "b" + itoa(int(cv-CVOsc1B)+1)
	case cv < CVAmp1:
		return "f" + itoa(int(cv-CVFil1)+1)
	}
	return "cv" + itoa(int(cv))
}

// Gate identifies a digital gate on the gate latch.
type Gate uint8

const (
	GateASaw Gate = iota
	GateATri
	GateBSaw
	GateBTri
	GatePModFA
	GatePModFil
	GateSync
)

// CVDriver is the abstract control-voltage interface that core code uses.
type CVDriver interface {
	// SetCV commands a CV. When immediate is set the DAC is written and the
	// S&H strobed right away, otherwise the value is picked up by the next
	// Update.
	SetCV(cv CV, code uint16, immediate bool)

	// CV returns the last commanded code.
	CV(cv CV) uint16

	// SetGate sets a digital gate.
	SetGate(g Gate, on bool)

	// MaintainCV services one CV during a long operation. With open set the
	// DAC is loaded with the CV's code and its S&H left sampling; otherwise
	// the S&H is closed.
	MaintainCV(cv CV, open bool)

	// Update refreshes every CV once.
	Update()
}

var cvDriver CVDriver

// SetCVDriver is called by target-specific code to register its driver.
func SetCVDriver(d CVDriver) {
	cvDriver = d
}

// MustCV returns the configured driver or panics if missing.
func MustCV() CVDriver {
	if cvDriver == nil {
		panic("CV driver not configured")
	}
	return cvDriver
}
