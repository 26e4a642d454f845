package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/broadcast"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/storage"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/logger"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/metrics"
)

const (
	// DefaultDedupWindow is the lookback inside which repeated reports for
	// the same (user, kind) merge into one case.
	DefaultDedupWindow = 15 * time.Minute

	// DefaultPendingTTL is how long a case may sit unresolved before
	// IsPendingExpired treats it as stale.
	DefaultPendingTTL = 12 * time.Hour
)

// ErrInvalidTransition is returned when a requested status move is not in the
// allowed transition table.
var ErrInvalidTransition = errors.New("invalid status transition")

// IsPendingExpired reports whether a case pending since the given time should
// be treated as stale. An absent timestamp counts as expired.
func IsPendingExpired(pendingSince *time.Time, ttl time.Duration) bool {
	if pendingSince == nil || pendingSince.IsZero() {
		return true
	}
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return time.Since(*pendingSince) > ttl
}

// CaseInput carries one issue report into the dedup engine.
type CaseInput struct {
	TenantID      string
	BotID         string
	Platform      model.Platform
	SessionID     *string
	UserID        string
	Kind          string
	Text          string
	Meta          map[string]any
	Labels        []string
	AttachmentURL string
}

// CaseService is the case dedup engine.
type CaseService struct {
	store     storage.Store
	stats     *StatService
	publisher broadcast.Publisher
	logger    *logger.Logger

	window time.Duration
	// maxOpenAge caps, when non-zero, how long one case keeps absorbing
	// merges regardless of report cadence. Zero keeps the historical
	// behavior: steady reports extend a case indefinitely.
	maxOpenAge time.Duration

	now func() time.Time
}

// NewCaseService creates the dedup engine.
func NewCaseService(store storage.Store, stats *StatService, publisher broadcast.Publisher, log *logger.Logger, window, maxOpenAge time.Duration) *CaseService {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &CaseService{
		store:      store,
		stats:      stats,
		publisher:  publisher,
		logger:     log,
		window:     window,
		maxOpenAge: maxOpenAge,
		now:        time.Now,
	}
}

// CreateOrMerge decides whether the report merges into an existing case or
// creates a new one. Only the create branch emits a notification, bumps the
// casesNew counter and broadcasts case:new.
func (s *CaseService) CreateOrMerge(ctx context.Context, in CaseInput) (*model.Case, bool, error) {
	now := s.now()

	note := model.CaseNote{
		Text:          in.Text,
		Via:           string(in.Platform),
		AddedAt:       now,
		AttachmentURL: in.AttachmentURL,
		Meta:          in.Meta,
	}

	existing, err := s.store.FindRecentCase(ctx, storage.CaseQuery{
		TenantID:  in.TenantID,
		UserID:    in.UserID,
		Kind:      in.Kind,
		SessionID: in.SessionID,
		Since:     now.Add(-s.window),
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("case lookup failed: %w", err)
	}

	if existing != nil && s.withinOpenAge(existing, now) {
		existing.Meta.Notes = append(existing.Meta.Notes, note)
		existing.Text = in.Text
		if existing.AttachmentURL == "" && in.AttachmentURL != "" {
			existing.AttachmentURL = in.AttachmentURL
		}
		for _, label := range in.Labels {
			if !existing.Meta.HasLabel(label) {
				existing.Meta.Labels = append(existing.Meta.Labels, label)
			}
		}
		existing.UpdatedAt = now

		if err := s.store.UpdateCase(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("case merge failed: %w", err)
		}
		metrics.CasesTotal.WithLabelValues(in.TenantID, "merged").Inc()
		return existing, false, nil
	}

	c := &model.Case{
		TenantID:      in.TenantID,
		BotID:         in.BotID,
		SessionID:     in.SessionID,
		UserID:        in.UserID,
		Kind:          in.Kind,
		Status:        model.CasePending,
		Text:          in.Text,
		Meta:          model.CaseMeta{Notes: []model.CaseNote{note}, Labels: in.Labels},
		AttachmentURL: in.AttachmentURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateCase(ctx, c); err != nil {
		return nil, false, fmt.Errorf("case create failed: %w", err)
	}
	metrics.CasesTotal.WithLabelValues(in.TenantID, "created").Inc()

	// Secondary bookkeeping: failures are logged, the case itself stands.
	s.stats.RecordCase(ctx, in.TenantID, in.BotID, CaseChangeNew)
	s.notify(ctx, c)

	s.publisher.Publish(model.BroadcastEvent{
		Type:     model.EventCaseNew,
		TenantID: c.TenantID,
		BotID:    c.BotID,
		Payload: model.CaseNewPayload{
			ID:        c.ID,
			Text:      c.Text,
			Kind:      c.Kind,
			SessionID: derefOrEmpty(c.SessionID),
			CreatedAt: c.CreatedAt,
		},
	})

	return c, true, nil
}

func (s *CaseService) withinOpenAge(c *model.Case, now time.Time) bool {
	if s.maxOpenAge <= 0 {
		return true
	}
	return now.Sub(c.CreatedAt) <= s.maxOpenAge
}

func (s *CaseService) notify(ctx context.Context, c *model.Case) {
	if !ShouldNotify(c.Kind, c.Meta) {
		return
	}
	n := BuildNotification(c)
	if err := s.store.CreateNotification(ctx, n); err != nil {
		if errors.Is(err, storage.ErrDuplicateNotification) {
			return
		}
		s.logger.Error("notification write failed",
			zap.String("case_id", c.ID),
			zap.Error(err),
		)
		return
	}
	metrics.NotificationsCreated.WithLabelValues(c.TenantID, c.Kind).Inc()
}

// validTransitions lists the operator-driven status moves, including the
// RESOLVED -> PENDING reopen.
var validTransitions = map[model.CaseStatus][]model.CaseStatus{
	model.CasePending:  {model.CaseReview, model.CaseResolved},
	model.CaseReview:   {model.CaseResolved, model.CasePending},
	model.CaseResolved: {model.CasePending},
}

// UpdateStatus applies an operator-driven status transition. Resolution
// stamps resolvedAt/resolvedBy and bumps casesResolved; reopening clears
// both markers.
func (s *CaseService) UpdateStatus(ctx context.Context, tenantID, caseID string, status model.CaseStatus, actor string) (*model.Case, error) {
	c, err := s.store.GetCase(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(c.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, status)
	}

	now := s.now()
	switch status {
	case model.CaseResolved:
		c.ResolvedAt = &now
		c.ResolvedBy = actor
	case model.CasePending:
		c.ResolvedAt = nil
		c.ResolvedBy = ""
	}
	c.Status = status
	c.UpdatedAt = now

	if err := s.store.UpdateCase(ctx, c); err != nil {
		return nil, err
	}
	if status == model.CaseResolved {
		s.stats.RecordCase(ctx, c.TenantID, c.BotID, CaseChangeResolved)
	}
	return c, nil
}

func transitionAllowed(from, to model.CaseStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
