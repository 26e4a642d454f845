package model

import (
	"time"
)

// Notification is an operator-facing alert created at most once per case, on
// the create branch of the dedup engine. Only the read markers are mutable,
// and those are set by the operator UI, not by the pipeline.
type Notification struct {
	ID       string `json:"id" gorm:"primaryKey"`
	TenantID string `json:"tenant_id" gorm:"index"`
	BotID    string `json:"bot_id"`
	CaseID   string `json:"case_id" gorm:"uniqueIndex"`
	Kind     string `json:"kind"`

	Title string `json:"title"`
	Body  string `json:"body"`

	IsRead bool       `json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
	ReadBy string     `json:"read_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
