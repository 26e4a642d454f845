// Package service implements the ingestion pipeline: session resolution,
// duplicate guarding, case deduplication, stat aggregation, notification
// filtering and orchestration.
package service

import (
	"unicode/utf8"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
)

// ReviewLabel is the secondary signal an activity case must carry before an
// operator notification fires.
const ReviewLabel = "review"

// excerptLimit caps the notification body excerpt, in runes.
const excerptLimit = 160

// notifyKinds is the allow-list of case kinds that produce operator
// notifications on creation.
var notifyKinds = map[string]bool{
	"deposit_missing":  true,
	"withdraw_missing": true,
	"payment_failed":   true,
	"account_locked":   true,
	"complaint":        true,
	"activity":         true,
}

// notifyTitles maps case kinds to human-readable notification titles.
var notifyTitles = map[string]string{
	"deposit_missing":  "Deposit not credited",
	"withdraw_missing": "Withdrawal not received",
	"payment_failed":   "Payment failed",
	"account_locked":   "Account locked",
	"complaint":        "Customer complaint",
	"activity":         "Activity flagged for review",
}

// ShouldNotify decides whether a newly created case warrants an operator
// notification. Most allow-listed kinds always fire; "activity" additionally
// requires a review marker in the case metadata.
func ShouldNotify(kind string, meta model.CaseMeta) bool {
	if !notifyKinds[kind] {
		return false
	}
	if kind == "activity" {
		return meta.HasLabel(ReviewLabel)
	}
	return true
}

// BuildNotification derives the notification row for a case.
func BuildNotification(c *model.Case) *model.Notification {
	title, ok := notifyTitles[c.Kind]
	if !ok {
		title = "Case update: " + c.Kind
	}

	return &model.Notification{
		TenantID: c.TenantID,
		BotID:    c.BotID,
		CaseID:   c.ID,
		Kind:     c.Kind,
		Title:    title,
		Body:     c.UserID + ": " + excerpt(c.Text, excerptLimit),
	}
}

// excerpt truncates s to limit runes, appending an ellipsis when truncated.
func excerpt(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
