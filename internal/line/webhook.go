package line

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"linebridge/internal/httpserver"
	"linebridge/internal/translate"
	"log/slog"
)

// TranslateService is the slice of the translation engine the webhook needs.
type TranslateService interface {
	HandleMessage(ctx context.Context, id translate.ConversationID, text string) translate.Result
	Settings(id translate.ConversationID) translate.Settings
	UpdateSettings(id translate.ConversationID, apply func(*translate.Settings)) error
}

type WebhookDeps struct {
	Translator    TranslateService
	Bot           BotClient
	Logger        *slog.Logger
	ChannelSecret string
	EventMaxAge   time.Duration
	Now           func() time.Time
}

// WebhookHandler receives LINE webhook deliveries, verifies their signature
// and routes text messages through the translation engine. Delivery is
// at-least-once; replies are best-effort.
type WebhookHandler struct {
	translator    TranslateService
	bot           BotClient
	logger        *slog.Logger
	channelSecret string
	eventMaxAge   time.Duration
	now           func() time.Time
}

func NewWebhookHandler(deps WebhookDeps) *WebhookHandler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &WebhookHandler{
		translator:    deps.Translator,
		bot:           deps.Bot,
		logger:        deps.Logger,
		channelSecret: deps.ChannelSecret,
		eventMaxAge:   deps.EventMaxAge,
		now:           now,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "cannot read body")
		return
	}

	if h.channelSecret != "" {
		if !ValidSignature(h.channelSecret, body, r.Header.Get("X-Line-Signature")) {
			httpserver.WriteJSONError(w, http.StatusForbidden, "forbidden", "invalid signature")
			return
		}
	}

	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "cannot parse webhook")
		return
	}

	ctx := r.Context()
	for _, event := range req.Events {
		h.handleEvent(ctx, event)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *WebhookHandler) handleEvent(ctx context.Context, event Event) {
	if event.Type != "message" || event.Message == nil || event.Message.Type != "text" {
		return
	}

	// Stale deliveries (e.g. a burst after the platform woke the service)
	// are dropped before touching any conversation state.
	if h.eventMaxAge > 0 && event.Timestamp > 0 {
		age := h.now().Sub(time.UnixMilli(event.Timestamp))
		if age > h.eventMaxAge {
			h.logger.Info("skip old event",
				slog.String("webhook_event_id", event.WebhookEventID),
				slog.Duration("age", age))
			return
		}
	}

	id := conversationID(event.Source)
	text := strings.TrimSpace(event.Message.Text)

	settings := h.translator.Settings(id)
	if settings.Prefix != "" {
		if !strings.HasPrefix(text, settings.Prefix) {
			// Commands stay reachable even when a trigger prefix is set;
			// everything else without the prefix is ignored.
			if reply, ok := h.handleCommand(id, text); ok {
				h.reply(ctx, event.ReplyToken, reply)
			}
			return
		}
		text = strings.TrimSpace(strings.TrimPrefix(text, settings.Prefix))
	}

	if reply, ok := h.handleCommand(id, text); ok {
		h.reply(ctx, event.ReplyToken, reply)
		return
	}

	result := h.translator.HandleMessage(ctx, id, text)
	if result.Text == "" {
		// Echo of an all-whitespace message; LINE rejects empty text.
		return
	}
	h.reply(ctx, event.ReplyToken, result.Text)
}

func (h *WebhookHandler) reply(ctx context.Context, replyToken string, text string) {
	if err := h.bot.Reply(ctx, replyToken, text); err != nil {
		h.logger.Error("reply failed", slog.String("error", err.Error()))
	}
}

// conversationID keys the chat scope with its type so a group and a user
// with the same underlying id never share state.
func conversationID(src Source) translate.ConversationID {
	switch src.Type {
	case "group":
		return translate.ConversationID("group:" + src.GroupID)
	case "room":
		return translate.ConversationID("room:" + src.RoomID)
	default:
		return translate.ConversationID("user:" + src.UserID)
	}
}
