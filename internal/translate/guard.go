package translate

import "unicode/utf8"

const (
	// guardMinInput disables the heuristic for short inputs, which have no
	// reliable length-ratio signal.
	guardMinInput = 8
	guardMinRatio = 0.25
	guardMaxRatio = 2.5
	guardMinRunes = 3
)

// Implausible reports whether a translation's length deviates implausibly
// from its input: likely truncated, empty, or the model answered something
// other than the translation.
func Implausible(input, output string) bool {
	li := utf8.RuneCountInString(input)
	if li < guardMinInput {
		return false
	}
	lo := utf8.RuneCountInString(output)

	lower := guardMinRatio * float64(li)
	if lower < guardMinRunes {
		lower = guardMinRunes
	}
	return float64(lo) < lower || float64(lo) > guardMaxRatio*float64(li)
}
