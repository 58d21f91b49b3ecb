package voiceboard

import (
	"math"

	"p600/core"
)

// timer8253 keeps the part of the 8253 the tuner uses: per-channel byte
// toggles for two-byte loads and reads, and channel 1's count of reference
// ticks, gated by the synchronizer.
type timer8253 struct {
	modes     [3]uint8
	writeHigh [3]bool
	readHigh  [3]bool
	counted   [3]uint32
}

func (t *timer8253) control(v uint8) {
	ch := v >> 6
	if ch > 2 {
		return
	}
	t.modes[ch] = v
	t.writeHigh[ch] = false
	t.readHigh[ch] = false
}

// write takes the LSB then the MSB; the MSB reloads the channel.
func (t *timer8253) write(addr, v uint8) {
	ch := addr - core.IOTimerCh0
	if !t.writeHigh[ch] {
		t.writeHigh[ch] = true
		return
	}
	t.writeHigh[ch] = false
	t.counted[ch] = 0
}

// read returns the LSB then the MSB of the down-counter, loaded with 0 and
// wrapping every 65536 ticks.
func (t *timer8253) read(addr uint8) uint8 {
	ch := addr - core.IOTimerCh0
	value := uint16(core.MaxCode - t.counted[ch]&core.MaxCode)
	if !t.readHigh[ch] {
		t.readHigh[ch] = true
		return uint8(value)
	}
	t.readHigh[ch] = false
	return uint8(value >> 8)
}

// count adds the reference clock edges between two instants to channel 1.
func (t *timer8253) count(from, to float64) {
	t.counted[1] += uint32(math.Floor(to) - math.Floor(from))
}

// flipFlops is the synchronizer: a D flip-flop clocked by the audio signal
// with asynchronous preset and clear, gating channel 1. Releasing clear arms
// the gate; it opens when Q next rises and closes, disarmed, when Q falls,
// so exactly one audio period is counted.
type flipFlops struct {
	latch    uint8
	q        bool
	armed    bool
	counting bool
	start    float64
}

func (f *flipFlops) setLatch(v uint8, now float64, t *timer8253) {
	old := f.latch
	f.latch = v

	if old&core.SyncClear == 0 && v&core.SyncClear != 0 {
		f.armed = true
	}
	if f.counting && v&core.SyncCountEn == 0 {
		f.stop(now, t)
	}

	switch {
	case v&core.SyncPreset == 0:
		f.setQ(true, false, now, t)
	case v&core.SyncClear == 0:
		f.setQ(false, false, now, t)
	}
}

// edge clocks D into Q on a rising audio edge unless preset or clear holds
// Q.
func (f *flipFlops) edge(at float64, t *timer8253) {
	if f.latch&core.SyncPreset == 0 || f.latch&core.SyncClear == 0 {
		return
	}
	f.setQ(f.latch&core.SyncData != 0, true, at, t)
}

// setQ moves Q. Only a clocked rise opens the counter gate; preset does not.
func (f *flipFlops) setQ(q, clocked bool, at float64, t *timer8253) {
	if q == f.q {
		return
	}
	f.q = q
	if q {
		if clocked && f.armed && f.latch&core.SyncCountEn != 0 {
			f.counting = true
			f.start = at
		}
		return
	}
	if f.counting {
		f.stop(at, t)
	}
	f.armed = false
}

func (f *flipFlops) stop(at float64, t *timer8253) {
	t.count(f.start, at)
	f.counting = false
}
