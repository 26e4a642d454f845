// Package storage defines the persistence boundary of the pipeline and its
// two implementations: a Postgres store used in production and an in-memory
// store used by tests and DSN-less local runs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateMessage is returned when a message with the same
	// (session, platform message id) pair was already stored. Callers treat
	// it as "duplicate, skip", not as a failure.
	ErrDuplicateMessage = errors.New("duplicate platform message id")

	// ErrDuplicateNotification is returned when a notification for the case
	// already exists.
	ErrDuplicateNotification = errors.New("notification already exists for case")
)

// CaseQuery names the dedup candidate lookup: the most recent case for
// (user, kind), additionally constrained to the session when one is supplied,
// whose last activity (updated_at, bumped on every merge) is at or after
// Since. Anchoring on last activity is what lets a steady report cadence keep
// extending the same case.
type CaseQuery struct {
	TenantID  string
	UserID    string
	Kind      string
	SessionID *string
	Since     time.Time
}

// NotificationFilter narrows a notification listing.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
}

// CaseFilter narrows a case listing.
type CaseFilter struct {
	BotID  string
	Status model.CaseStatus
	Limit  int
}

// Store is the transactional persistence interface the pipeline runs against.
type Store interface {
	// Bots
	GetBot(ctx context.Context, botID string) (*model.Bot, error)
	CreateBot(ctx context.Context, bot *model.Bot) error

	// Sessions. UpsertSession is atomic for concurrent callers with the same
	// identity key: display name is only overwritten when non-empty, and
	// LastMessageAt is always bumped.
	UpsertSession(ctx context.Context, s *model.Session) (*model.Session, error)

	// Messages
	HasMessage(ctx context.Context, sessionID, platformMessageID string) (bool, error)
	CreateMessage(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error)

	// Cases
	FindRecentCase(ctx context.Context, q CaseQuery) (*model.Case, error)
	CreateCase(ctx context.Context, c *model.Case) error
	UpdateCase(ctx context.Context, c *model.Case) error
	GetCase(ctx context.Context, tenantID, caseID string) (*model.Case, error)
	ListCases(ctx context.Context, tenantID string, f CaseFilter) ([]model.Case, error)

	// Notifications
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, tenantID string, f NotificationFilter) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, tenantID, id, readBy string) (*model.Notification, error)

	// Daily stats. IncrementDailyStat applies the non-zero delta fields with
	// the store's atomic increment primitive; a missing row is created
	// seeded with the delta.
	IncrementDailyStat(ctx context.Context, tenantID, botID, dateKey string, delta model.StatDelta) error
	GetDailyStat(ctx context.Context, botID, dateKey string) (*model.DailyStat, error)
}
