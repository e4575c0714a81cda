package line

// Webhook payload types for the LINE Messaging API (v2).

type WebhookRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

type Event struct {
	Type           string   `json:"type"`
	WebhookEventID string   `json:"webhookEventId"`
	Timestamp      int64    `json:"timestamp"` // unix millis
	ReplyToken     string   `json:"replyToken"`
	Source         Source   `json:"source"`
	Message        *Message `json:"message"`
}

type Source struct {
	Type    string `json:"type"` // "user", "group", "room"
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
	RoomID  string `json:"roomId"`
}

type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"` // only "text" is handled
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
