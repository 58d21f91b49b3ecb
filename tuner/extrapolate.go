package tuner

import "p600/core"

// Direction selects which way Extrapolate walks the table.
type Direction int8

const (
	Descending Direction = -1
	Ascending  Direction = 1
)

// Extrapolate fills cv's markers from `from` to the end of the table in
// direction dir, each as the linear continuation of the two markers before
// it: t[m] = 2*t[m-dir] - t[m-2*dir]. Results are clamped to the code range.
// Nothing is written when the two seed markers are outside the table.
func Extrapolate(t *Table, cv core.CV, from int, dir Direction) {
	d := int(dir)
	if seed := from - 2*d; seed < 0 || seed >= OctaveCount {
		return
	}
	if near := from - d; near < 0 || near >= OctaveCount {
		return
	}

	for m := from; m >= 0 && m < OctaveCount; m += d {
		near := int64(t[m-d][cv])
		far := int64(t[m-2*d][cv])
		t[m][cv] = clampCode(2*near - far)
	}
}

// Offset moves every marker of cv except anchor by delta, clamped, keeping
// the column's shape through a single new point.
func Offset(t *Table, cv core.CV, anchor int, delta int64) {
	for m := 0; m < OctaveCount; m++ {
		if m != anchor {
			t[m][cv] = clampCode(int64(t[m][cv]) + delta)
		}
	}
}
