package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/platform"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/service"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/logger"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/metrics"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler receives raw platform callbacks. Each platform POSTs to
// /webhooks/{platform}/{botID}; the handler normalizes the body into canonical
// events and runs every event through the pipeline.
type WebhookHandler struct {
	pipeline *service.Pipeline
	stats    *service.StatService
	logger   *logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(pipeline *service.Pipeline, stats *service.StatService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		pipeline: pipeline,
		stats:    stats,
		logger:   log,
	}
}

// Receive handles POST /webhooks/{platform}/{botID}.
//
// Always acknowledges recognized requests with 200 even when individual events
// fail, because LINE and Facebook retry non-2xx deliveries and a retry would
// re-run every event in the batch. Failures are logged and counted instead.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	plat := model.Platform(chi.URLParam(r, "platform"))
	botID := chi.URLParam(r, "botID")
	if botID == "" {
		writeError(w, http.StatusBadRequest, "botID is required")
		return
	}

	norm, ok := platform.ForPlatform(plat)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown platform")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	events, err := norm.Events(body)
	if err != nil {
		h.logger.Warn("webhook body rejected",
			zap.String("platform", string(plat)),
			zap.String("bot_id", botID),
			zap.Error(err))
		writeError(w, http.StatusBadRequest, "malformed webhook payload")
		return
	}

	for _, raw := range events {
		msg, err := norm.Normalize(raw)
		if err != nil {
			h.logger.Warn("event normalization failed",
				zap.String("platform", string(plat)),
				zap.String("bot_id", botID),
				zap.Error(err))
			metrics.EventsSkipped.WithLabelValues(string(plat), "normalize_error").Inc()
			continue
		}
		if msg == nil {
			// Membership changes still count toward the daily totals.
			switch platform.LINEEventType(raw) {
			case "follow":
				h.stats.RecordFollow(r.Context(), "", botID, true)
			case "unfollow":
				h.stats.RecordFollow(r.Context(), "", botID, false)
			}
			metrics.EventsSkipped.WithLabelValues(string(plat), "unhandled_type").Inc()
			continue
		}

		_, err = h.pipeline.Process(r.Context(), service.Inbound{
			BotID:             botID,
			Platform:          msg.Platform,
			UserID:            msg.UserID,
			Text:              msg.Text,
			MessageType:       msg.Type,
			AttachmentURL:     msg.AttachmentURL,
			AttachmentMeta:    msg.AttachmentMeta,
			DisplayName:       msg.DisplayName,
			PlatformMessageID: msg.PlatformMessageID,
			RawPayload:        msg.Raw,
		})
		if err != nil {
			h.logger.Error("pipeline failed for event",
				zap.String("platform", string(plat)),
				zap.String("bot_id", botID),
				zap.String("user_id", msg.UserID),
				zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
