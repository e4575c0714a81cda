package translate

// Direction is an ordered (source, target) language pair for one translation.
// Direction is significant: ko→th and th→ko are distinct.
type Direction struct {
	Source Lang
	Target Lang
}

var (
	KoreanToThai = Direction{Source: Korean, Target: Thai}
	ThaiToKorean = Direction{Source: Thai, Target: Korean}
)

// Tag returns the flag marker prepended to translated replies.
func (d Direction) Tag() string {
	if d.Source == Thai {
		return "🇹🇭→🇰🇷"
	}
	return "🇰🇷→🇹🇭"
}

// ResolveDirection decides the translation direction for a classified message.
// An undetermined classification continues in the direction of the last
// language: rooms are bursty, and short follow-ups rarely carry script signal.
// Returns ok=false when there is not enough information to pick a direction.
func ResolveDirection(c Classification, last Lang) (Direction, bool) {
	switch {
	case c.Lang == Korean:
		return KoreanToThai, true
	case c.Lang == Thai:
		return ThaiToKorean, true
	case last == Korean:
		return KoreanToThai, true
	case last == Thai:
		return ThaiToKorean, true
	}
	return Direction{}, false
}
