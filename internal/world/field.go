// Hardship landscape using layered simplex noise.
// Gives neighboring cells similar endogenous hardship, modelling regional deprivation.
package world

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// HardshipField samples endogenous hardship from smooth noise.
type HardshipField struct {
	noise  opensimplex.Noise
	detail opensimplex.Noise
	scale  float64
}

// NewHardshipField creates a field. scale sets the feature size: larger
// values give smaller, busier regions.
func NewHardshipField(seed int64, scale float64) *HardshipField {
	return &HardshipField{
		noise:  opensimplex.NewNormalized(seed),
		detail: opensimplex.NewNormalized(seed + 1),
		scale:  scale,
	}
}

// At returns the hardship at c, in [0, 1].
func (f *HardshipField) At(c Coord) float64 {
	x := float64(c.X) * f.scale
	y := float64(c.Y) * f.scale

	// Two octaves, the second at double frequency and half weight.
	v := f.noise.Eval2(x, y)*0.67 + f.detail.Eval2(x*2, y*2)*0.33
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
