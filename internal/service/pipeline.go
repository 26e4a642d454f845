package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/broadcast"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/classify"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/storage"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/logger"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/metrics"
)

// IntentDuplicate is the sentinel intent returned when the duplicate guard
// stops processing.
const IntentDuplicate = "duplicate"

// Inbound is one canonical inbound event entering the pipeline.
type Inbound struct {
	TenantID string
	BotID    string
	Platform model.Platform
	UserID   string
	Text     string

	MessageType    model.MessageType
	AttachmentURL  string
	AttachmentMeta map[string]any

	DisplayName       string
	PlatformMessageID string
	RawPayload        map[string]any
}

// Result is what the platform handler sends back (or silently drops, for
// duplicates).
type Result struct {
	Reply   string `json:"reply"`
	Intent  string `json:"intent"`
	IsIssue bool   `json:"is_issue"`
}

// Pipeline orchestrates one inbound event end to end. Invocations run
// concurrently across webhook requests; all cross-invocation safety lives in
// the store (upserts, unique indexes, atomic increments).
type Pipeline struct {
	store      storage.Store
	classifier classify.Classifier
	cases      *CaseService
	stats      *StatService
	publisher  broadcast.Publisher
	logger     *logger.Logger
}

// NewPipeline wires the pipeline.
func NewPipeline(
	store storage.Store,
	classifier classify.Classifier,
	cases *CaseService,
	stats *StatService,
	publisher broadcast.Publisher,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		store:      store,
		classifier: classifier,
		cases:      cases,
		stats:      stats,
		publisher:  publisher,
		logger:     log,
	}
}

// Process runs one inbound event through the pipeline and returns the reply
// triple. The user always gets some reply; only a confirmed duplicate yields
// silence (empty reply with the duplicate sentinel intent).
func (p *Pipeline) Process(ctx context.Context, in Inbound) (Result, error) {
	log := p.logger.WithPipeline(in.TenantID, in.BotID, string(in.Platform), in.UserID)

	if in.Text == "" {
		// Nothing to classify; answer without touching the store.
		return Result{Reply: classify.FallbackReply, Intent: classify.IntentOther}, nil
	}

	bot, err := p.store.GetBot(ctx, in.BotID)
	if err != nil {
		log.Warn("bot lookup failed, returning fallback", zap.Error(err))
		return Result{Reply: classify.FallbackReply, Intent: classify.IntentOther}, nil
	}
	if in.TenantID == "" {
		in.TenantID = bot.TenantID
	} else if bot.TenantID != in.TenantID {
		return Result{}, fmt.Errorf("bot %s does not belong to tenant %s", in.BotID, in.TenantID)
	}

	session, err := p.store.UpsertSession(ctx, &model.Session{
		TenantID:    in.TenantID,
		BotID:       in.BotID,
		Platform:    in.Platform,
		UserID:      in.UserID,
		DisplayName: in.DisplayName,
	})
	if err != nil {
		return Result{}, fmt.Errorf("session resolve failed: %w", err)
	}

	// Duplicate guard. The unique index on (session, platform message id)
	// closes the race this check alone would leave open.
	if in.PlatformMessageID != "" {
		seen, err := p.store.HasMessage(ctx, session.ID, in.PlatformMessageID)
		if err != nil {
			return Result{}, fmt.Errorf("duplicate check failed: %w", err)
		}
		if seen {
			metrics.DuplicatesSuppressed.WithLabelValues(in.TenantID, string(in.Platform)).Inc()
			return Result{Intent: IntentDuplicate}, nil
		}
	}

	userMsg := &model.Message{
		SessionID:      session.ID,
		TenantID:       in.TenantID,
		BotID:          in.BotID,
		SenderType:     model.SenderUser,
		Type:           messageTypeOrText(in.MessageType),
		Text:           in.Text,
		AttachmentURL:  in.AttachmentURL,
		AttachmentMeta: in.AttachmentMeta,
		Meta:           map[string]any{"raw": in.RawPayload},
	}
	if in.PlatformMessageID != "" {
		id := in.PlatformMessageID
		userMsg.PlatformMessageID = &id
	}
	if err := p.store.CreateMessage(ctx, userMsg); err != nil {
		if errors.Is(err, storage.ErrDuplicateMessage) {
			// Concurrent delivery of the same platform id lost the insert
			// race; same outcome as the guard above.
			metrics.DuplicatesSuppressed.WithLabelValues(in.TenantID, string(in.Platform)).Inc()
			return Result{Intent: IntentDuplicate}, nil
		}
		return Result{}, fmt.Errorf("message persist failed: %w", err)
	}
	metrics.MessagesIngested.WithLabelValues(in.TenantID, string(in.Platform)).Inc()

	p.publishMessage(userMsg)

	outcome := p.classifier.Classify(ctx, bot, in.Platform, in.Text)

	if outcome.IsIssue {
		sessionID := session.ID
		_, _, err := p.cases.CreateOrMerge(ctx, CaseInput{
			TenantID:      in.TenantID,
			BotID:         in.BotID,
			Platform:      in.Platform,
			SessionID:     &sessionID,
			UserID:        in.UserID,
			Kind:          outcome.Intent,
			Text:          in.Text,
			Meta:          map[string]any{"message_id": userMsg.ID},
			Labels:        outcome.Labels,
			AttachmentURL: in.AttachmentURL,
		})
		if err != nil {
			// Secondary bookkeeping: the reply path survives case failures.
			log.Error("case dedup failed", zap.String("kind", outcome.Intent), zap.Error(err))
		}
	}

	delta := model.StatDelta{Total: 1, MessageIn: 1}
	if userMsg.Type == model.MessageText {
		delta.Text = 1
	}
	if outcome.Reply != "" {
		delta.Total++
		delta.MessageOut = 1
	}
	p.stats.IncrementDaily(ctx, in.TenantID, in.BotID, delta)

	if outcome.Reply != "" {
		botMsg := &model.Message{
			SessionID:  session.ID,
			TenantID:   in.TenantID,
			BotID:      in.BotID,
			SenderType: model.SenderBot,
			Type:       model.MessageText,
			Text:       outcome.Reply,
			Meta: map[string]any{
				"intent":   outcome.Intent,
				"is_issue": outcome.IsIssue,
			},
		}
		if err := p.store.CreateMessage(ctx, botMsg); err != nil {
			log.Error("reply persist failed", zap.Error(err))
		} else {
			p.publishMessage(botMsg)
		}
	}

	return Result{Reply: outcome.Reply, Intent: outcome.Intent, IsIssue: outcome.IsIssue}, nil
}

func (p *Pipeline) publishMessage(msg *model.Message) {
	p.publisher.Publish(model.BroadcastEvent{
		Type:     model.EventChatMessageNew,
		TenantID: msg.TenantID,
		BotID:    msg.BotID,
		Payload:  model.NewChatMessagePayload(msg),
	})
}

func messageTypeOrText(t model.MessageType) model.MessageType {
	if t == "" {
		return model.MessageText
	}
	return t
}
