package llm

import (
	"context"
	"time"
)

// ChatTranslator adapts a chat-completions Client to the translation call
// shape: system instruction, prior conversational turns oldest first, then
// the text to translate. Each call is bounded by timeout; on expiry the
// caller sees an ordinary error.
type ChatTranslator struct {
	client  Client
	timeout time.Duration
}

func NewChatTranslator(client Client, timeout time.Duration) *ChatTranslator {
	return &ChatTranslator{client: client, timeout: timeout}
}

func (t *ChatTranslator) Translate(ctx context.Context, system string, priorTurns []string, text string) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	messages := make([]Message, 0, len(priorTurns)+2)
	messages = append(messages, Message{Role: "system", Content: system})
	for _, turn := range priorTurns {
		messages = append(messages, Message{Role: "user", Content: turn})
	}
	messages = append(messages, Message{Role: "user", Content: text})

	return t.client.ChatCompletion(ctx, messages)
}
