package voiceboard

import "p600/core"

// Renderer turns stage frequencies into a 16-bit sawtooth, keeping phase
// across notes so consecutive notes join without clicks.
type Renderer struct {
	board      *Board
	SampleRate int
	Amplitude  int
	phase      float64
}

// NewRenderer returns a renderer at sampleRate with a -6 dBFS amplitude.
func (b *Board) NewRenderer(sampleRate int) *Renderer {
	return &Renderer{board: b, SampleRate: sampleRate, Amplitude: 1 << 14}
}

// Note appends seconds of cv's stage playing at code to buf.
func (r *Renderer) Note(buf []int, cv core.CV, code uint16, seconds float64) []int {
	hz := r.board.Hz(cv, code)
	n := int(seconds * float64(r.SampleRate))
	step := hz / float64(r.SampleRate)

	for i := 0; i < n; i++ {
		buf = append(buf, int(float64(r.Amplitude)*(2*r.phase-1)))
		r.phase += step
		if r.phase >= 1 {
			r.phase -= float64(int(r.phase))
		}
	}
	return buf
}

// Rest appends seconds of silence.
func (r *Renderer) Rest(buf []int, seconds float64) []int {
	n := int(seconds * float64(r.SampleRate))
	for i := 0; i < n; i++ {
		buf = append(buf, 0)
	}
	return buf
}
