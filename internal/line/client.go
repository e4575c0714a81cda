package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"linebridge/internal/config"
)

// replyTextLimit stays under LINE's 5000-character message cap.
const replyTextLimit = 4900

// BotClient sends replies through the LINE Messaging API.
type BotClient interface {
	Reply(ctx context.Context, replyToken string, text string) error
}

type HTTPBotClient struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

func NewClient(cfg config.LineConfig, httpClient *http.Client) BotClient {
	return &HTTPBotClient{
		accessToken: cfg.ChannelAccessToken,
		baseURL:     cfg.APIBaseURL,
		httpClient:  httpClient,
	}
}

func (c *HTTPBotClient) Reply(ctx context.Context, replyToken string, text string) error {
	payload := replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: clampRunes(text, replyTextLimit)}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal line request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/bot/message/reply", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build line request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute line request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("line api status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func clampRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
