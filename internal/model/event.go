package model

import (
	"time"
)

// EventType names a realtime broadcast event consumed by the dashboard.
type EventType string

const (
	EventChatMessageNew EventType = "chat:message:new"
	EventCaseNew        EventType = "case:new"
	EventStatsUpdate    EventType = "stats:update"
)

// BroadcastEvent is the envelope published to a tenant-scoped channel.
// Delivery is best effort: no retry, no replay, consumers tolerate gaps.
type BroadcastEvent struct {
	Type     EventType `json:"type"`
	TenantID string    `json:"tenant"`
	BotID    string    `json:"bot_id"`
	Payload  any       `json:"payload"`
}

// ChatMessagePayload is the payload of a chat:message:new event.
type ChatMessagePayload struct {
	SessionID string `json:"session_id"`
	Message   struct {
		ID            string      `json:"id"`
		SenderType    SenderType  `json:"sender_type"`
		Text          string      `json:"text"`
		Type          MessageType `json:"type"`
		AttachmentURL string      `json:"attachment_url,omitempty"`
		CreatedAt     time.Time   `json:"created_at"`
	} `json:"message"`
}

// NewChatMessagePayload builds the wire payload for one stored message.
func NewChatMessagePayload(msg *Message) ChatMessagePayload {
	var p ChatMessagePayload
	p.SessionID = msg.SessionID
	p.Message.ID = msg.ID
	p.Message.SenderType = msg.SenderType
	p.Message.Text = msg.Text
	p.Message.Type = msg.Type
	p.Message.AttachmentURL = msg.AttachmentURL
	p.Message.CreatedAt = msg.CreatedAt
	return p
}

// CaseNewPayload is the payload of a case:new event.
type CaseNewPayload struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Kind      string    `json:"kind"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StatsUpdatePayload is the payload of a stats:update event.
type StatsUpdatePayload struct {
	DateKey string    `json:"date_key"`
	Delta   StatDelta `json:"delta"`
}
