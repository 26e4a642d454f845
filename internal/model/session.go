// Package model defines data structures for the ingestion pipeline.
package model

import (
	"time"
)

// Platform identifies the messaging platform a session belongs to.
type Platform string

const (
	PlatformLINE     Platform = "line"
	PlatformTelegram Platform = "telegram"
	PlatformFacebook Platform = "facebook"
)

// Session represents a per-tenant conversation thread with one external user.
// Exactly one session exists per (tenant, bot, platform, user).
type Session struct {
	ID       string   `json:"id" gorm:"primaryKey"`
	TenantID string   `json:"tenant_id" gorm:"uniqueIndex:ux_session_identity,priority:1"`
	BotID    string   `json:"bot_id" gorm:"uniqueIndex:ux_session_identity,priority:2"`
	Platform Platform `json:"platform" gorm:"uniqueIndex:ux_session_identity,priority:3"`
	UserID   string   `json:"user_id" gorm:"uniqueIndex:ux_session_identity,priority:4"`

	DisplayName   string    `json:"display_name"`
	LastMessageAt time.Time `json:"last_message_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
