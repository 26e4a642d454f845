package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
)

// Memory is a mutex-guarded in-memory Store. It backs unit tests and local
// runs without a database; the Postgres store is the production path.
type Memory struct {
	mu sync.RWMutex

	bots          map[string]*model.Bot
	sessions      map[string]*model.Session // keyed by identity
	messages      map[string]*model.Message
	cases         map[string]*model.Case
	notifications map[string]*model.Notification
	stats         map[string]*model.DailyStat // keyed by botID|dateKey
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		bots:          make(map[string]*model.Bot),
		sessions:      make(map[string]*model.Session),
		messages:      make(map[string]*model.Message),
		cases:         make(map[string]*model.Case),
		notifications: make(map[string]*model.Notification),
		stats:         make(map[string]*model.DailyStat),
	}
}

func sessionKey(tenantID, botID string, platform model.Platform, userID string) string {
	return tenantID + "|" + botID + "|" + string(platform) + "|" + userID
}

// GetBot returns a bot by id.
func (m *Memory) GetBot(ctx context.Context, botID string) (*model.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bot, ok := m.bots[botID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *bot
	return &cp, nil
}

// CreateBot stores a bot.
func (m *Memory) CreateBot(ctx context.Context, bot *model.Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bot.ID == "" {
		bot.ID = uuid.NewString()
	}
	now := time.Now()
	bot.CreatedAt, bot.UpdatedAt = now, now
	cp := *bot
	m.bots[bot.ID] = &cp
	return nil
}

// UpsertSession finds or creates the session for the identity key.
func (m *Memory) UpsertSession(ctx context.Context, s *model.Session) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(s.TenantID, s.BotID, s.Platform, s.UserID)
	now := time.Now()

	existing, ok := m.sessions[key]
	if !ok {
		created := *s
		created.ID = uuid.NewString()
		created.LastMessageAt = now
		created.CreatedAt, created.UpdatedAt = now, now
		m.sessions[key] = &created
		cp := created
		return &cp, nil
	}

	if s.DisplayName != "" {
		existing.DisplayName = s.DisplayName
	}
	existing.LastMessageAt = now
	existing.UpdatedAt = now
	cp := *existing
	return &cp, nil
}

// HasMessage reports whether the session already ingested the platform id.
func (m *Memory) HasMessage(ctx context.Context, sessionID, platformMessageID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, msg := range m.messages {
		if msg.SessionID == sessionID && msg.PlatformMessageID != nil && *msg.PlatformMessageID == platformMessageID {
			return true, nil
		}
	}
	return false, nil
}

// CreateMessage stores a message, enforcing the per-session platform id
// uniqueness the duplicate guard relies on.
func (m *Memory) CreateMessage(ctx context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.PlatformMessageID != nil {
		for _, existing := range m.messages {
			if existing.SessionID == msg.SessionID &&
				existing.PlatformMessageID != nil &&
				*existing.PlatformMessageID == *msg.PlatformMessageID {
				return ErrDuplicateMessage
			}
		}
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

// ListMessages returns a session's messages, oldest first.
func (m *Memory) ListMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// FindRecentCase returns the newest case matching the dedup key inside the
// lookback window, or ErrNotFound.
func (m *Memory) FindRecentCase(ctx context.Context, q CaseQuery) (*model.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *model.Case
	for _, c := range m.cases {
		if c.TenantID != q.TenantID || c.UserID != q.UserID || c.Kind != q.Kind {
			continue
		}
		if q.SessionID != nil && (c.SessionID == nil || *c.SessionID != *q.SessionID) {
			continue
		}
		if c.UpdatedAt.Before(q.Since) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// CreateCase stores a new case.
func (m *Memory) CreateCase(ctx context.Context, c *model.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	cp := *c
	m.cases[c.ID] = &cp
	return nil
}

// UpdateCase replaces a stored case in place. Callers supply UpdatedAt; the
// dedup engine stamps it with its own clock.
func (m *Memory) UpdateCase(ctx context.Context, c *model.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cases[c.ID]; !ok {
		return ErrNotFound
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	cp := *c
	m.cases[c.ID] = &cp
	return nil
}

// GetCase returns a tenant's case by id.
func (m *Memory) GetCase(ctx context.Context, tenantID, caseID string) (*model.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cases[caseID]
	if !ok || c.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ListCases returns a tenant's cases, newest first.
func (m *Memory) ListCases(ctx context.Context, tenantID string, f CaseFilter) ([]model.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Case
	for _, c := range m.cases {
		if c.TenantID != tenantID {
			continue
		}
		if f.BotID != "" && c.BotID != f.BotID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// CreateNotification stores a notification, at most one per case.
func (m *Memory) CreateNotification(ctx context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.notifications {
		if existing.CaseID == n.CaseID {
			return ErrDuplicateNotification
		}
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	m.notifications[n.ID] = &cp
	return nil
}

// ListNotifications returns a tenant's notifications, newest first.
func (m *Memory) ListNotifications(ctx context.Context, tenantID string, f NotificationFilter) ([]model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Notification
	for _, n := range m.notifications {
		if n.TenantID != tenantID {
			continue
		}
		if f.UnreadOnly && n.IsRead {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// MarkNotificationRead flips the read markers on a notification.
func (m *Memory) MarkNotificationRead(ctx context.Context, tenantID, id, readBy string) (*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notifications[id]
	if !ok || n.TenantID != tenantID {
		return nil, ErrNotFound
	}
	now := time.Now()
	n.IsRead = true
	n.ReadAt = &now
	n.ReadBy = readBy
	cp := *n
	return &cp, nil
}

// IncrementDailyStat applies the delta under the store mutex, creating the
// row lazily on the first event of a day.
func (m *Memory) IncrementDailyStat(ctx context.Context, tenantID, botID, dateKey string, delta model.StatDelta) error {
	if delta.IsZero() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := botID + "|" + dateKey
	row, ok := m.stats[key]
	if !ok {
		row = &model.DailyStat{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			BotID:     botID,
			DateKey:   dateKey,
			CreatedAt: time.Now(),
		}
		m.stats[key] = row
	}

	row.Total += delta.Total
	row.Text += delta.Text
	row.Follow += delta.Follow
	row.Unfollow += delta.Unfollow
	row.MessageIn += delta.MessageIn
	row.MessageOut += delta.MessageOut
	row.CasesNew += delta.CasesNew
	row.CasesResolved += delta.CasesResolved
	row.UpdatedAt = time.Now()
	return nil
}

// GetDailyStat returns the counters for (bot, dateKey).
func (m *Memory) GetDailyStat(ctx context.Context, botID, dateKey string) (*model.DailyStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.stats[botID+"|"+dateKey]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}
