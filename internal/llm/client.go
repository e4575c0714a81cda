package llm

import "context"

// Message is one chat-completions message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the minimal chat-completions surface the bot needs.
type Client interface {
	ChatCompletion(ctx context.Context, messages []Message) (string, error)
}
