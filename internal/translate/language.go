package translate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Lang is a supported translation language.
type Lang string

const (
	Korean Lang = "ko"
	Thai   Lang = "th"
)

// Classification is the result of script detection for one message.
type Classification struct {
	// Lang is the detected language, empty when it cannot be determined.
	Lang Lang
	// Reaction marks reaction-only input (laughter glyphs, bare emoji).
	// Such input carries no script signal of its own; Lang is then the
	// conversation's last language if one was provided.
	Reaction bool
}

// Script ranges. Compatibility Jamo (U+3130..U+318F) is intentionally not
// treated as a Korean script signal: it is the reaction alphabet (ㅋㅋㅋ, ㅠㅠ)
// and must follow the conversation's last language instead.
var (
	thaiScript   = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0E00, Hi: 0x0E7F, Stride: 1}}}
	hangulScript = &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x1100, Hi: 0x11FF, Stride: 1},
		{Lo: 0xAC00, Hi: 0xD7A3, Stride: 1},
	}}
)

// DefaultReactionPatterns matches the reaction shorthand seen in real rooms:
// Korean laughter/crying jamo, Thai "555" laughter, bare punctuation runs.
var DefaultReactionPatterns = []string{
	`^[ㅋㅎㅠㅜ]+$`,
	`^5{3,}\+*$`,
	`^[~!?.…^;]+$`,
}

// DefaultEmojiRanges covers the common pictographic blocks. Joiners, skin
// tones and variation selectors are accepted alongside them.
var DefaultEmojiRanges = [][2]rune{
	{0x1F300, 0x1FAFF},
	{0x2600, 0x27BF},
	{0x2B00, 0x2BFF},
	{0x1F1E6, 0x1F1FF},
}

// ClassifierConfig carries the recognized reaction pattern set. The set is
// configuration, not logic: its coverage is incomplete and tuned per
// deployment.
type ClassifierConfig struct {
	ReactionPatterns []string
	EmojiRanges      [][2]rune
}

// Classifier maps raw text to a Classification. Pure; safe for concurrent use.
type Classifier struct {
	reactions   []*regexp.Regexp
	emojiRanges [][2]rune
}

func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	patterns := cfg.ReactionPatterns
	if patterns == nil {
		patterns = DefaultReactionPatterns
	}
	ranges := cfg.EmojiRanges
	if ranges == nil {
		ranges = DefaultEmojiRanges
	}

	c := &Classifier{emojiRanges: ranges}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile reaction pattern %q: %w", p, err)
		}
		c.reactions = append(c.reactions, re)
	}
	return c, nil
}

// Classify detects the language of text. Script characters win outright;
// reaction-only input falls back to last when it is set.
func (c *Classifier) Classify(text string, last Lang) Classification {
	if containsScript(text, thaiScript) {
		return Classification{Lang: Thai}
	}
	if containsScript(text, hangulScript) {
		return Classification{Lang: Korean}
	}
	if c.isReaction(text) || c.isEmojiOnly(text) {
		return Classification{Lang: last, Reaction: true}
	}
	return Classification{}
}

func (c *Classifier) isReaction(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, re := range c.reactions {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

func (c *Classifier) isEmojiOnly(text string) bool {
	seen := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		switch r {
		case 0x200D, 0xFE0F, 0x20E3: // ZWJ, variation selector, keycap
			continue
		}
		if r >= 0x1F3FB && r <= 0x1F3FF { // skin tone modifiers
			continue
		}
		if !c.inEmojiRange(r) {
			return false
		}
		seen = true
	}
	return seen
}

func (c *Classifier) inEmojiRange(r rune) bool {
	for _, rng := range c.emojiRanges {
		if r >= rng[0] && r <= rng[1] {
			return true
		}
	}
	return false
}

func containsScript(text string, table *unicode.RangeTable) bool {
	for _, r := range text {
		if unicode.Is(table, r) {
			return true
		}
	}
	return false
}
