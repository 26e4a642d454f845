package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/broadcast"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/storage"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/logger"
)

// MessageDirection names the side of a recorded message.
type MessageDirection string

const (
	DirectionIn  MessageDirection = "in"
	DirectionOut MessageDirection = "out"
)

// CaseChange names the case counter to bump.
type CaseChange string

const (
	CaseChangeNew      CaseChange = "new"
	CaseChangeResolved CaseChange = "resolved"
)

// StatService maintains the per-bot daily counters. Counters only move
// upward and every write goes through the store's atomic increment, so
// concurrent webhook deliveries cannot lose updates. Failed increments are
// logged for reconciliation, never surfaced to the reply path.
type StatService struct {
	store     storage.Store
	publisher broadcast.Publisher
	logger    *logger.Logger

	now func() time.Time
}

// NewStatService creates the stat aggregator.
func NewStatService(store storage.Store, publisher broadcast.Publisher, log *logger.Logger) *StatService {
	return &StatService{
		store:     store,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// IncrementDaily applies the delta to today's row for the bot and broadcasts
// a stats:update event. Errors are swallowed after logging.
func (s *StatService) IncrementDaily(ctx context.Context, tenantID, botID string, delta model.StatDelta) {
	if delta.IsZero() {
		return
	}

	dateKey := model.DateKey(s.now())

	if tenantID == "" {
		// Callers that only know the bot: resolve its tenant for the row.
		bot, err := s.store.GetBot(ctx, botID)
		if err != nil {
			s.logger.Error("stat increment skipped, bot lookup failed",
				zap.String("bot_id", botID),
				zap.Error(err),
			)
			return
		}
		tenantID = bot.TenantID
	}

	if err := s.store.IncrementDailyStat(ctx, tenantID, botID, dateKey, delta); err != nil {
		s.logger.Error("stat increment failed",
			zap.String("bot_id", botID),
			zap.String("date_key", dateKey),
			zap.Error(err),
		)
		return
	}

	s.publisher.Publish(model.BroadcastEvent{
		Type:     model.EventStatsUpdate,
		TenantID: tenantID,
		BotID:    botID,
		Payload:  model.StatsUpdatePayload{DateKey: dateKey, Delta: delta},
	})
}

// RecordMessage bumps the total and directional counters for one message.
func (s *StatService) RecordMessage(ctx context.Context, tenantID, botID string, direction MessageDirection) {
	delta := model.StatDelta{Total: 1}
	if direction == DirectionOut {
		delta.MessageOut = 1
	} else {
		delta.MessageIn = 1
	}
	s.IncrementDaily(ctx, tenantID, botID, delta)
}

// RecordCase bumps the case counters.
func (s *StatService) RecordCase(ctx context.Context, tenantID, botID string, change CaseChange) {
	delta := model.StatDelta{}
	if change == CaseChangeResolved {
		delta.CasesResolved = 1
	} else {
		delta.CasesNew = 1
	}
	s.IncrementDaily(ctx, tenantID, botID, delta)
}

// RecordFollow bumps the follow or unfollow counter for membership events
// the normalizers skip.
func (s *StatService) RecordFollow(ctx context.Context, tenantID, botID string, followed bool) {
	delta := model.StatDelta{Total: 1}
	if followed {
		delta.Follow = 1
	} else {
		delta.Unfollow = 1
	}
	s.IncrementDaily(ctx, tenantID, botID, delta)
}
