package layout

import "math"

const (
	// MinCharacters and MaxCharacters bound the computed characters per
	// line for non-standard paper widths.
	MinCharacters = 32
	MaxCharacters = 64

	// widthTolerance is how far, in millimetres, a paper width may sit from
	// a standard roll and still use its fixed character count.
	widthTolerance = 2.0
)

// standardWidths maps common roll widths (mm) to characters per line at
// the default font.
var standardWidths = []struct {
	mm    float64
	chars int
}{
	{58, 32},
	{76, 42},
	{80, 48},
	{82, 48},
	{110, 64},
}

// ResolveCharacterWidth returns how many characters fit on one line of
// paper widthMM wide. Standard rolls use their known count; anything else
// is estimated from the printable width and clamped to
// [MinCharacters, MaxCharacters].
func ResolveCharacterWidth(widthMM float64) int {
	if math.IsNaN(widthMM) || math.IsInf(widthMM, 0) {
		return MinCharacters
	}

	best, bestDiff := 0, math.Inf(1)
	for _, w := range standardWidths {
		diff := math.Abs(widthMM - w.mm)
		if diff <= widthTolerance && diff < bestDiff {
			best, bestDiff = w.chars, diff
		}
	}
	if best > 0 {
		return best
	}

	chars := math.Floor(((widthMM - 6) / 10) * 5.9)
	return int(min(max(chars, MinCharacters), MaxCharacters))
}
