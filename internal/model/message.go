package model

import (
	"time"
)

// SenderType identifies who produced a message.
type SenderType string

const (
	SenderUser     SenderType = "user"
	SenderBot      SenderType = "bot"
	SenderOperator SenderType = "operator"
)

// MessageType is the declared content type of a canonical message.
type MessageType string

const (
	MessageText    MessageType = "TEXT"
	MessageImage   MessageType = "IMAGE"
	MessageFile    MessageType = "FILE"
	MessageSticker MessageType = "STICKER"
	MessageSystem  MessageType = "SYSTEM"
)

// Message is one stored conversation message. Messages are immutable once
// written and belong to exactly one session. PlatformMessageID is nullable;
// when present it appears in at most one message per session, which is what
// the duplicate guard relies on.
type Message struct {
	ID        string `json:"id" gorm:"primaryKey"`
	SessionID string `json:"session_id" gorm:"index;uniqueIndex:ux_message_platform_id,priority:1"`
	TenantID  string `json:"tenant_id" gorm:"index"`
	BotID     string `json:"bot_id"`

	SenderType SenderType  `json:"sender_type"`
	Type       MessageType `json:"type"`
	Text       string      `json:"text"`

	AttachmentURL  string         `json:"attachment_url,omitempty"`
	AttachmentMeta map[string]any `json:"attachment_meta,omitempty" gorm:"serializer:json"`

	PlatformMessageID *string `json:"platform_message_id,omitempty" gorm:"uniqueIndex:ux_message_platform_id,priority:2"`

	// Meta carries the raw platform payload and the classification outcome.
	Meta map[string]any `json:"meta,omitempty" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at"`
}
