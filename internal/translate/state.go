package translate

import (
	"strings"
	"time"
)

// ConversationID identifies one chat scope. It is prefixed with the scope
// type (group/room/user) so two scope types with the same numeric id never
// collide.
type ConversationID string

// Mode forces or automates the translation direction for a conversation.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeKoToTh Mode = "ko2th"
	ModeThToKo Mode = "th2ko"
)

// Settings are the per-conversation knobs, persisted with the state.
type Settings struct {
	// Mode is auto (script detection) or a forced direction.
	Mode Mode `json:"mode"`
	// Prefix, when set, gates translation: messages without it are ignored.
	Prefix string `json:"prefix"`
	// NativeTone asks the model for colloquial register.
	NativeTone bool `json:"native_tone"`
}

func DefaultSettings() Settings {
	return Settings{Mode: ModeAuto, NativeTone: true}
}

// CacheEntry is one memoized translation. It is servable while
// now - CreatedAt stays within the consistency window.
type CacheEntry struct {
	Output    string    `json:"output"`
	CreatedAt time.Time `json:"created_at"`
}

// State is everything remembered about one conversation.
type State struct {
	// LastLanguage is the source language of the last successful translation.
	LastLanguage Lang `json:"last_language,omitempty"`
	// Context holds the most recent raw inputs, oldest first. It is only a
	// continuity hint for the model; it is never re-translated.
	Context []string `json:"context,omitempty"`
	// Cache maps source|target|text to a memoized translation.
	Cache    map[string]CacheEntry `json:"cache,omitempty"`
	Settings Settings              `json:"settings"`
}

func NewState() State {
	return State{Settings: DefaultSettings()}
}

// normalize repairs states loaded from older persisted files.
func (s *State) normalize() {
	if s.Settings.Mode == "" {
		s.Settings = DefaultSettings()
	}
}

func (s State) clone() State {
	out := s
	if s.Context != nil {
		out.Context = make([]string, len(s.Context))
		copy(out.Context, s.Context)
	}
	if s.Cache != nil {
		out.Cache = make(map[string]CacheEntry, len(s.Cache))
		for k, v := range s.Cache {
			out.Cache[k] = v
		}
	}
	return out
}

func cacheKey(d Direction, text string) string {
	return string(d.Source) + "|" + string(d.Target) + "|" + strings.TrimSpace(text)
}

// CachedOutput returns the memoized translation for (direction, text) if one
// exists inside the window. Expired entries are purged on the way; the second
// return reports a hit, the third reports whether anything was purged.
func (s *State) CachedOutput(d Direction, text string, now time.Time, window time.Duration) (string, bool, bool) {
	key := cacheKey(d, text)
	entry, ok := s.Cache[key]
	if !ok {
		return "", false, false
	}
	if now.Sub(entry.CreatedAt) > window {
		delete(s.Cache, key)
		return "", false, true
	}
	return entry.Output, true, false
}

// StoreOutput memoizes a translation, evicting oldest entries beyond capacity.
func (s *State) StoreOutput(d Direction, text, output string, now time.Time, capacity int) {
	if s.Cache == nil {
		s.Cache = make(map[string]CacheEntry)
	}
	s.Cache[cacheKey(d, text)] = CacheEntry{Output: output, CreatedAt: now}

	for capacity > 0 && len(s.Cache) > capacity {
		oldestKey := ""
		var oldest time.Time
		for k, e := range s.Cache {
			if oldestKey == "" || e.CreatedAt.Before(oldest) {
				oldestKey = k
				oldest = e.CreatedAt
			}
		}
		delete(s.Cache, oldestKey)
	}
}

// AppendContext pushes text onto the rolling context, evicting oldest first.
func (s *State) AppendContext(text string, depth int) {
	if depth <= 0 {
		return
	}
	s.Context = append(s.Context, text)
	if len(s.Context) > depth {
		s.Context = s.Context[len(s.Context)-depth:]
	}
}
