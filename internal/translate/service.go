package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Translator performs the external translation call. priorTurns are earlier
// raw inputs from the conversation, oldest first; text is the item to
// translate. Any failure is treated uniformly as translation unavailable.
type Translator interface {
	Translate(ctx context.Context, system string, priorTurns []string, text string) (string, error)
}

// Outcome names which of the possible replies a message produced.
type Outcome string

const (
	OutcomeTranslated Outcome = "translated"
	OutcomeCached     Outcome = "cached"
	OutcomeEcho       Outcome = "echo"
	OutcomeClarify    Outcome = "clarify"
	OutcomeApology    Outcome = "apology"
)

// Result is the single reply produced for one inbound message.
type Result struct {
	Text    string
	Outcome Outcome
}

const (
	clarifyMessage = "지원 언어는 한국어/태국어 입니다.\n" +
		"• !mode auto (자동) / !mode ko2th / !mode th2ko\n" +
		"• !help 로 명령어를 확인하세요."

	apologyKorean = "지금은 번역 서버가 혼잡합니다. 잠시 후 다시 시도해주세요."
	apologyThai   = "ขณะนี้เซิร์ฟเวอร์แปลหนาแน่น กรุณาลองใหม่อีกครั้งค่ะ"
)

// Config tunes the translation state engine.
type Config struct {
	// ContextDepth bounds the rolling context FIFO.
	ContextDepth int
	// CacheCapacity bounds the per-conversation cache.
	CacheCapacity int
	// ConsistencyWindow is how long a cached translation is served verbatim.
	ConsistencyWindow time.Duration
	// RefreshLastOnHit updates lastLanguage on cache hits. Off by default;
	// the original translation already set it.
	RefreshLastOnHit bool
	// Now is overridable for tests.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		ContextDepth:      5,
		CacheCapacity:     200,
		ConsistencyWindow: 10 * time.Minute,
	}
}

// Service is the per-message orchestrator: classify, resolve direction,
// check the cache, translate with the output guard, persist state, reply.
type Service struct {
	store      Store
	translator Translator
	classifier *Classifier
	cfg        Config
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[ConversationID]*sync.Mutex
}

func NewService(store Store, translator Translator, classifier *Classifier, cfg Config, logger *slog.Logger) *Service {
	if cfg.ContextDepth <= 0 {
		cfg.ContextDepth = DefaultConfig().ContextDepth
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = DefaultConfig().CacheCapacity
	}
	if cfg.ConsistencyWindow <= 0 {
		cfg.ConsistencyWindow = DefaultConfig().ConsistencyWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:      store,
		translator: translator,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
		locks:      make(map[ConversationID]*sync.Mutex),
	}
}

// HandleMessage runs one inbound message through the state machine and
// always produces exactly one reply: translated text, cached text, a
// clarification prompt, an apology, or a verbatim echo.
func (s *Service) HandleMessage(ctx context.Context, id ConversationID, text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Text: text, Outcome: OutcomeEcho}
	}

	// Concurrent messages in the same conversation must not race on its
	// state; different conversations proceed in parallel.
	lock := s.conversationLock(id)
	lock.Lock()
	defer lock.Unlock()

	state, ok := s.store.Get(id)
	if !ok {
		state = NewState()
	}

	cls := s.classifier.Classify(trimmed, state.LastLanguage)

	direction, ok := s.resolveDirection(cls, state)
	if !ok {
		if cls.Reaction {
			// Reaction-only input in a fresh conversation: echo it back
			// rather than burning a model call or nagging the room.
			return Result{Text: text, Outcome: OutcomeEcho}
		}
		return Result{Text: clarifyMessage, Outcome: OutcomeClarify}
	}

	now := s.cfg.Now()
	if cached, hit, purged := state.CachedOutput(direction, trimmed, now, s.cfg.ConsistencyWindow); hit {
		mutated := false
		if s.cfg.RefreshLastOnHit && state.LastLanguage != direction.Source {
			state.LastLanguage = direction.Source
			mutated = true
		}
		if mutated || purged {
			s.persist(id, state)
		}
		return Result{Text: direction.Tag() + "\n" + cached, Outcome: OutcomeCached}
	}

	output, err := s.translateGuarded(ctx, direction, state, trimmed)
	if err != nil {
		s.logger.Error("translation unavailable",
			slog.String("conversation", string(id)),
			slog.String("direction", direction.Tag()),
			slog.String("error", err.Error()))
		return Result{Text: apologyFor(direction.Source), Outcome: OutcomeApology}
	}

	state.StoreOutput(direction, trimmed, output, now, s.cfg.CacheCapacity)
	state.AppendContext(trimmed, s.cfg.ContextDepth)
	state.LastLanguage = direction.Source
	s.persist(id, state)

	return Result{Text: direction.Tag() + "\n" + output, Outcome: OutcomeTranslated}
}

// Settings returns the conversation's settings, creating defaults lazily.
func (s *Service) Settings(id ConversationID) Settings {
	state, ok := s.store.Get(id)
	if !ok {
		return DefaultSettings()
	}
	return state.Settings
}

// UpdateSettings applies a mutation to the conversation's settings.
func (s *Service) UpdateSettings(id ConversationID, apply func(*Settings)) error {
	lock := s.conversationLock(id)
	lock.Lock()
	defer lock.Unlock()

	state, ok := s.store.Get(id)
	if !ok {
		state = NewState()
	}
	apply(&state.Settings)
	if err := s.store.Put(id, state); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *Service) resolveDirection(cls Classification, state State) (Direction, bool) {
	switch state.Settings.Mode {
	case ModeKoToTh:
		return KoreanToThai, true
	case ModeThToKo:
		return ThaiToKorean, true
	}
	return ResolveDirection(cls, state.LastLanguage)
}

// translateGuarded invokes the translator and applies the output guard:
// an implausibly sized output earns exactly one retry with a stricter
// instruction, and the retry's result is final.
func (s *Service) translateGuarded(ctx context.Context, d Direction, state State, text string) (string, error) {
	system := SystemPrompt(d, state.Settings.NativeTone)
	output, err := s.translator.Translate(ctx, system, state.Context, text)
	if err != nil {
		return "", err
	}

	if !Implausible(text, output) {
		return output, nil
	}

	s.logger.Warn("implausible translation length, retrying",
		slog.String("direction", d.Tag()),
		slog.Int("input_len", len([]rune(text))),
		slog.Int("output_len", len([]rune(output))))

	retried, err := s.translator.Translate(ctx, StrictSystemPrompt(d, state.Settings.NativeTone), state.Context, text)
	if err != nil {
		// The first attempt did produce something; prefer it over an apology.
		return output, nil
	}
	return retried, nil
}

// persist saves state best-effort: a failed write is logged but never blocks
// the reply, at the cost of possibly losing this turn's update on crash.
func (s *Service) persist(id ConversationID, state State) {
	if err := s.store.Put(id, state); err != nil {
		s.logger.Warn("persist conversation state failed",
			slog.String("conversation", string(id)),
			slog.String("error", err.Error()))
	}
}

func (s *Service) conversationLock(id ConversationID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func apologyFor(source Lang) string {
	if source == Thai {
		return apologyThai
	}
	return apologyKorean
}
