package model

import (
	"time"
)

// DateKey formats a timestamp as the per-day bucket key.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// DailyStat holds the rolling counters for one bot on one day. Counters are
// only ever incremented by the pipeline; rows are created lazily on the first
// event of a new day.
type DailyStat struct {
	ID       string `json:"id" gorm:"primaryKey"`
	TenantID string `json:"tenant_id" gorm:"index"`
	BotID    string `json:"bot_id" gorm:"uniqueIndex:ux_stat_bot_date,priority:1"`
	DateKey  string `json:"date_key" gorm:"uniqueIndex:ux_stat_bot_date,priority:2"`

	Total         int64 `json:"total"`
	Text          int64 `json:"text"`
	Follow        int64 `json:"follow"`
	Unfollow      int64 `json:"unfollow"`
	MessageIn     int64 `json:"message_in"`
	MessageOut    int64 `json:"message_out"`
	CasesNew      int64 `json:"cases_new"`
	CasesResolved int64 `json:"cases_resolved"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatDelta names the increments to apply to a DailyStat row. Zero fields are
// left untouched.
type StatDelta struct {
	Total         int64 `json:"total,omitempty"`
	Text          int64 `json:"text,omitempty"`
	Follow        int64 `json:"follow,omitempty"`
	Unfollow      int64 `json:"unfollow,omitempty"`
	MessageIn     int64 `json:"message_in,omitempty"`
	MessageOut    int64 `json:"message_out,omitempty"`
	CasesNew      int64 `json:"cases_new,omitempty"`
	CasesResolved int64 `json:"cases_resolved,omitempty"`
}

// IsZero reports whether no increment is requested.
func (d StatDelta) IsZero() bool {
	return d == StatDelta{}
}
