package model

import (
	"time"
)

// Bot is the per-tenant bot configuration the classifier runs with. A bot
// without a system prompt is treated as unconfigured and the pipeline answers
// with the fallback reply.
type Bot struct {
	ID       string `json:"id" gorm:"primaryKey"`
	TenantID string `json:"tenant_id" gorm:"index"`
	Name     string `json:"name"`

	SystemPrompt  string   `json:"system_prompt"`
	IntentCatalog []string `json:"intent_catalog" gorm:"serializer:json"`
	Model         string   `json:"model"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Configured reports whether the bot carries enough configuration to classify.
func (b *Bot) Configured() bool {
	return b != nil && b.Enabled && b.SystemPrompt != ""
}
