package model

import (
	"time"
)

// CaseStatus is the lifecycle state of a case.
type CaseStatus string

const (
	CasePending  CaseStatus = "PENDING"
	CaseReview   CaseStatus = "REVIEW"
	CaseResolved CaseStatus = "RESOLVED"
)

// CaseNote is one appended report inside a case. Notes are append-only and
// keep their original order.
type CaseNote struct {
	Text          string         `json:"text"`
	Via           string         `json:"via"`
	AddedAt       time.Time      `json:"added_at"`
	AttachmentURL string         `json:"attachment_url,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
}

// CaseMeta is the structured metadata blob of a case.
type CaseMeta struct {
	Notes []CaseNote `json:"notes"`
	// Labels holds classification markers attached by the classifier,
	// e.g. a "review" marker that gates activity notifications.
	Labels []string `json:"labels,omitempty"`
}

// Case represents an operational issue reported by a user. A case is created
// once per dedup window and then mutated in place by subsequent merges.
type Case struct {
	ID        string  `json:"id" gorm:"primaryKey"`
	TenantID  string  `json:"tenant_id" gorm:"index"`
	BotID     string  `json:"bot_id" gorm:"index"`
	SessionID *string `json:"session_id,omitempty" gorm:"index"`
	UserID    string  `json:"user_id" gorm:"index:ix_case_user_kind,priority:1"`
	Kind      string  `json:"kind" gorm:"index:ix_case_user_kind,priority:2"`

	Status CaseStatus `json:"status"`

	// Text is the most recent report, i.e. the headline field.
	Text string   `json:"text"`
	Meta CaseMeta `json:"meta" gorm:"serializer:json"`

	AttachmentURL string `json:"attachment_url,omitempty"`

	AssigneeID string     `json:"assignee_id,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasLabel reports whether the case metadata carries the given label.
func (m CaseMeta) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}
