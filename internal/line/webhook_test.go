package line

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"linebridge/internal/translate"
	"log/slog"
)

type stubService struct {
	handled  []string
	settings map[translate.ConversationID]translate.Settings
	result   translate.Result
}

func newStubService(result translate.Result) *stubService {
	return &stubService{
		settings: make(map[translate.ConversationID]translate.Settings),
		result:   result,
	}
}

func (s *stubService) HandleMessage(ctx context.Context, id translate.ConversationID, text string) translate.Result {
	s.handled = append(s.handled, string(id)+"|"+text)
	return s.result
}

func (s *stubService) Settings(id translate.ConversationID) translate.Settings {
	if settings, ok := s.settings[id]; ok {
		return settings
	}
	return translate.DefaultSettings()
}

func (s *stubService) UpdateSettings(id translate.ConversationID, apply func(*translate.Settings)) error {
	settings := s.Settings(id)
	apply(&settings)
	s.settings[id] = settings
	return nil
}

type stubBot struct {
	replies []string
}

func (b *stubBot) Reply(ctx context.Context, replyToken string, text string) error {
	b.replies = append(b.replies, text)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventBody(t *testing.T, text string, ts time.Time) []byte {
	t.Helper()
	req := WebhookRequest{Events: []Event{{
		Type:       "message",
		Timestamp:  ts.UnixMilli(),
		ReplyToken: "rt-1",
		Source:     Source{Type: "group", GroupID: "G1"},
		Message:    &Message{Type: "text", Text: text},
	}}}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal webhook request: %v", err)
	}
	return body
}

func newTestHandler(svc TranslateService, bot BotClient, secret string, now time.Time) *WebhookHandler {
	return NewWebhookHandler(WebhookDeps{
		Translator:    svc,
		Bot:           bot,
		Logger:        testLogger(),
		ChannelSecret: secret,
		EventMaxAge:   60 * time.Second,
		Now:           func() time.Time { return now },
	})
}

func TestWebhookTranslatesAndReplies(t *testing.T) {
	now := time.Now()
	svc := newStubService(translate.Result{Text: "🇰🇷→🇹🇭\nสวัสดี", Outcome: translate.OutcomeTranslated})
	bot := &stubBot{}
	handler := newTestHandler(svc, bot, "", now)

	req := httptest.NewRequest("POST", "/callback", bytes.NewReader(eventBody(t, "안녕하세요", now)))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if len(svc.handled) != 1 || svc.handled[0] != "group:G1|안녕하세요" {
		t.Fatalf("unexpected handled messages: %+v", svc.handled)
	}
	if len(bot.replies) != 1 || bot.replies[0] != "🇰🇷→🇹🇭\nสวัสดี" {
		t.Fatalf("unexpected replies: %+v", bot.replies)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	now := time.Now()
	svc := newStubService(translate.Result{})
	bot := &stubBot{}
	handler := newTestHandler(svc, bot, "secret", now)

	body := eventBody(t, "안녕하세요", now)
	req := httptest.NewRequest("POST", "/callback", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", "bogus")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != 403 {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if len(svc.handled) != 0 {
		t.Fatalf("event must not be handled on bad signature")
	}
}

func TestWebhookAcceptsValidSignature(t *testing.T) {
	now := time.Now()
	svc := newStubService(translate.Result{Text: "ok", Outcome: translate.OutcomeTranslated})
	bot := &stubBot{}
	handler := newTestHandler(svc, bot, "secret", now)

	body := eventBody(t, "안녕하세요", now)
	req := httptest.NewRequest("POST", "/callback", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", sign("secret", body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if len(svc.handled) != 1 {
		t.Fatalf("expected event to be handled")
	}
}

func TestWebhookSkipsStaleEvents(t *testing.T) {
	now := time.Now()
	svc := newStubService(translate.Result{Text: "ok"})
	bot := &stubBot{}
	handler := newTestHandler(svc, bot, "", now)

	req := httptest.NewRequest("POST", "/callback", bytes.NewReader(eventBody(t, "안녕하세요", now.Add(-2*time.Minute))))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if len(svc.handled) != 0 || len(bot.replies) != 0 {
		t.Fatalf("stale event must be dropped, handled=%v replies=%v", svc.handled, bot.replies)
	}
}

func TestWebhookIgnoresNonTextEvents(t *testing.T) {
	now := time.Now()
	svc := newStubService(translate.Result{Text: "ok"})
	bot := &stubBot{}
	handler := newTestHandler(svc, bot, "", now)

	req := WebhookRequest{Events: []Event{
		{Type: "follow", Timestamp: now.UnixMilli()},
		{Type: "message", Timestamp: now.UnixMilli(), Message: &Message{Type: "sticker"}},
	}}
	body, _ := json.Marshal(req)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/callback", bytes.NewReader(body)))

	if len(svc.handled) != 0 {
		t.Fatalf("non-text events must be ignored, handled=%v", svc.handled)
	}
}

func TestWebhookHandlesCommands(t *testing.T) {
	now := time.Now()
	svc := newStubService(translate.Result{Text: "unused"})
	bot := &stubBot{}
	handler := newTestHandler(svc, bot, "", now)

	req := httptest.NewRequest("POST", "/callback", bytes.NewReader(eventBody(t, "!mode th2ko", now)))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if len(svc.handled) != 0 {
		t.Fatalf("commands must not reach translation, handled=%v", svc.handled)
	}
	if got := svc.settings["group:G1"].Mode; got != translate.ModeThToKo {
		t.Fatalf("mode = %q, want th2ko", got)
	}
	if len(bot.replies) != 1 || !strings.Contains(bot.replies[0], "태국어 → 한국어") {
		t.Fatalf("unexpected command reply: %+v", bot.replies)
	}
}

func TestWebhookPrefixGating(t *testing.T) {
	now := time.Now()
	svc := newStubService(translate.Result{Text: "translated", Outcome: translate.OutcomeTranslated})
	svc.settings["group:G1"] = translate.Settings{Mode: translate.ModeAuto, Prefix: "@tr", NativeTone: true}
	bot := &stubBot{}
	handler := newTestHandler(svc, bot, "", now)

	// Without the prefix: ignored entirely.
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/callback", bytes.NewReader(eventBody(t, "안녕하세요", now))))
	if len(svc.handled) != 0 || len(bot.replies) != 0 {
		t.Fatalf("unprefixed message must be ignored, handled=%v replies=%v", svc.handled, bot.replies)
	}

	// Commands still work without the prefix.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/callback", bytes.NewReader(eventBody(t, "!help", now))))
	if len(bot.replies) != 1 {
		t.Fatalf("help command should reply even with a prefix configured")
	}

	// With the prefix: stripped and translated.
	bot.replies = nil
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/callback", bytes.NewReader(eventBody(t, "@tr 안녕하세요", now))))
	if len(svc.handled) != 1 || svc.handled[0] != "group:G1|안녕하세요" {
		t.Fatalf("prefixed message should be stripped, handled=%v", svc.handled)
	}
	if len(bot.replies) != 1 {
		t.Fatalf("expected translated reply")
	}
}

func TestConversationIDScopes(t *testing.T) {
	tests := []struct {
		src  Source
		want translate.ConversationID
	}{
		{src: Source{Type: "group", GroupID: "123"}, want: "group:123"},
		{src: Source{Type: "room", RoomID: "123"}, want: "room:123"},
		{src: Source{Type: "user", UserID: "123"}, want: "user:123"},
	}
	for _, tt := range tests {
		if got := conversationID(tt.src); got != tt.want {
			t.Fatalf("conversationID(%+v) = %q, want %q", tt.src, got, tt.want)
		}
	}
	// Same raw id, different scopes, must never collide.
	if conversationID(Source{Type: "group", GroupID: "42"}) == conversationID(Source{Type: "user", UserID: "42"}) {
		t.Fatalf("group and user scopes with the same id must differ")
	}
}
