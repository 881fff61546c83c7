// Package uictl defines the small read-only control contracts UI components
// draw from, so components never depend on the playback implementation.
package uictl

import "golang.org/x/exp/constraints"

type Number interface {
	constraints.Integer | constraints.Float
}

// Dial is a control that can read some value.
type Dial[N Number] interface {
	Read() N
}

// CappedDial is a Dial with a maximum cap value.
type CappedDial[N Number] interface {
	Dial[N]
	Cap() (num, max N)
}

// Levels is a control that can read multiple levels.
type Levels[N Number] interface {
	Read() []N
}

// Fraction returns num/max clamped to [0,1], or 0 when max is not positive.
func Fraction[N Number](d CappedDial[N]) float64 {
	num, maxValue := d.Cap()
	if maxValue <= 0 {
		return 0
	}

	f := float64(num) / float64(maxValue)

	return min(1, max(0, f))
}
