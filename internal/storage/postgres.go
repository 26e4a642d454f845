package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
)

// Postgres is the gorm-backed production Store. Uniqueness constraints on
// (tenant, bot, platform, user) sessions, (session, platform message id)
// messages and (bot, date) stat rows back the pipeline's idempotency
// guarantees; counter updates run as SQL-side increments.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres opens a connection and migrates the schema.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Bot{},
		&model.Session{},
		&model.Message{},
		&model.Case{},
		&model.Notification{},
		&model.DailyStat{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Postgres{db: db}, nil
}

// GetBot returns a bot by id.
func (p *Postgres) GetBot(ctx context.Context, botID string) (*model.Bot, error) {
	var bot model.Bot
	if err := p.db.WithContext(ctx).First(&bot, "id = ?", botID).Error; err != nil {
		return nil, translate(err)
	}
	return &bot, nil
}

// CreateBot stores a bot.
func (p *Postgres) CreateBot(ctx context.Context, bot *model.Bot) error {
	if bot.ID == "" {
		bot.ID = uuid.NewString()
	}
	return translate(p.db.WithContext(ctx).Create(bot).Error)
}

// UpsertSession finds or creates the session row in a single statement so
// concurrent events for the same user cannot race a read-then-write.
func (p *Postgres) UpsertSession(ctx context.Context, s *model.Session) (*model.Session, error) {
	now := time.Now()
	row := model.Session{
		ID:            uuid.NewString(),
		TenantID:      s.TenantID,
		BotID:         s.BotID,
		Platform:      s.Platform,
		UserID:        s.UserID,
		DisplayName:   s.DisplayName,
		LastMessageAt: now,
	}

	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"}, {Name: "bot_id"}, {Name: "platform"}, {Name: "user_id"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			// Keep the stored name unless the event supplied a non-empty one.
			"display_name": gorm.Expr(
				"CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE sessions.display_name END"),
			"last_message_at": now,
			"updated_at":      now,
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, translate(err)
	}

	// The returned row id is not reliable after a conflict; re-read by key.
	var out model.Session
	err = p.db.WithContext(ctx).
		Where("tenant_id = ? AND bot_id = ? AND platform = ? AND user_id = ?",
			s.TenantID, s.BotID, s.Platform, s.UserID).
		First(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

// HasMessage reports whether the session already ingested the platform id.
func (p *Postgres) HasMessage(ctx context.Context, sessionID, platformMessageID string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&model.Message{}).
		Where("session_id = ? AND platform_message_id = ?", sessionID, platformMessageID).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

// CreateMessage stores a message. A unique-index conflict on the platform
// message id is reported as ErrDuplicateMessage.
func (p *Postgres) CreateMessage(ctx context.Context, m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	err := p.db.WithContext(ctx).Create(m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateMessage
	}
	return translate(err)
}

// ListMessages returns a session's messages, oldest first.
func (p *Postgres) ListMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	var out []model.Message
	q := p.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// FindRecentCase returns the newest case matching the dedup key inside the
// lookback window.
func (p *Postgres) FindRecentCase(ctx context.Context, q CaseQuery) (*model.Case, error) {
	query := p.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND kind = ? AND updated_at >= ?",
			q.TenantID, q.UserID, q.Kind, q.Since)
	if q.SessionID != nil {
		query = query.Where("session_id = ?", *q.SessionID)
	}

	var c model.Case
	if err := query.Order("created_at DESC").First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// CreateCase stores a new case.
func (p *Postgres) CreateCase(ctx context.Context, c *model.Case) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return translate(p.db.WithContext(ctx).Create(c).Error)
}

// UpdateCase saves a mutated case.
func (p *Postgres) UpdateCase(ctx context.Context, c *model.Case) error {
	return translate(p.db.WithContext(ctx).Save(c).Error)
}

// GetCase returns a tenant's case by id.
func (p *Postgres) GetCase(ctx context.Context, tenantID, caseID string) (*model.Case, error) {
	var c model.Case
	err := p.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, caseID).
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// ListCases returns a tenant's cases, newest first.
func (p *Postgres) ListCases(ctx context.Context, tenantID string, f CaseFilter) ([]model.Case, error) {
	q := p.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if f.BotID != "" {
		q = q.Where("bot_id = ?", f.BotID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []model.Case
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// CreateNotification stores a notification, at most one per case.
func (p *Postgres) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	err := p.db.WithContext(ctx).Create(n).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateNotification
	}
	return translate(err)
}

// ListNotifications returns a tenant's notifications, newest first.
func (p *Postgres) ListNotifications(ctx context.Context, tenantID string, f NotificationFilter) ([]model.Notification, error) {
	q := p.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if f.UnreadOnly {
		q = q.Where("is_read = false")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []model.Notification
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// MarkNotificationRead flips the read markers on a notification.
func (p *Postgres) MarkNotificationRead(ctx context.Context, tenantID, id, readBy string) (*model.Notification, error) {
	now := time.Now()
	res := p.db.WithContext(ctx).Model(&model.Notification{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{"is_read": true, "read_at": now, "read_by": readBy})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var n model.Notification
	if err := p.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

// statColumns maps StatDelta fields to their column names.
func statColumns(delta model.StatDelta) map[string]int64 {
	cols := map[string]int64{}
	if delta.Total != 0 {
		cols["total"] = delta.Total
	}
	if delta.Text != 0 {
		cols["text"] = delta.Text
	}
	if delta.Follow != 0 {
		cols["follow"] = delta.Follow
	}
	if delta.Unfollow != 0 {
		cols["unfollow"] = delta.Unfollow
	}
	if delta.MessageIn != 0 {
		cols["message_in"] = delta.MessageIn
	}
	if delta.MessageOut != 0 {
		cols["message_out"] = delta.MessageOut
	}
	if delta.CasesNew != 0 {
		cols["cases_new"] = delta.CasesNew
	}
	if delta.CasesResolved != 0 {
		cols["cases_resolved"] = delta.CasesResolved
	}
	return cols
}

// IncrementDailyStat upserts the (bot, date) row and applies the non-zero
// delta fields as SQL-side increments, so concurrent webhook deliveries
// cannot lose updates.
func (p *Postgres) IncrementDailyStat(ctx context.Context, tenantID, botID, dateKey string, delta model.StatDelta) error {
	cols := statColumns(delta)
	if len(cols) == 0 {
		return nil
	}

	row := model.DailyStat{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		BotID:         botID,
		DateKey:       dateKey,
		Total:         delta.Total,
		Text:          delta.Text,
		Follow:        delta.Follow,
		Unfollow:      delta.Unfollow,
		MessageIn:     delta.MessageIn,
		MessageOut:    delta.MessageOut,
		CasesNew:      delta.CasesNew,
		CasesResolved: delta.CasesResolved,
	}

	assignments := map[string]any{"updated_at": time.Now()}
	for col, v := range cols {
		assignments[col] = gorm.Expr(fmt.Sprintf("daily_stats.%s + ?", col), v)
	}

	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bot_id"}, {Name: "date_key"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
	return translate(err)
}

// GetDailyStat returns the counters for (bot, dateKey).
func (p *Postgres) GetDailyStat(ctx context.Context, botID, dateKey string) (*model.DailyStat, error) {
	var row model.DailyStat
	err := p.db.WithContext(ctx).
		Where("bot_id = ? AND date_key = ?", botID, dateKey).
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &row, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
