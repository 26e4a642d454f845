package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/middleware"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/storage"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/logger"
)

// BotHandler handles bot registration for the webhook surface.
type BotHandler struct {
	store  storage.Store
	logger *logger.Logger
}

// NewBotHandler creates a new bot handler.
func NewBotHandler(store storage.Store, log *logger.Logger) *BotHandler {
	return &BotHandler{
		store:  store,
		logger: log,
	}
}

// Create handles POST /api/v1/bots
func (h *BotHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	var req struct {
		Name          string   `json:"name"`
		SystemPrompt  string   `json:"system_prompt"`
		IntentCatalog []string `json:"intent_catalog"`
		Model         string   `json:"model"`
		Enabled       *bool    `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	bot := &model.Bot{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		Name:          req.Name,
		SystemPrompt:  req.SystemPrompt,
		IntentCatalog: req.IntentCatalog,
		Model:         req.Model,
		Enabled:       req.Enabled == nil || *req.Enabled,
	}

	if err := h.store.CreateBot(ctx, bot); err != nil {
		h.logger.Error("failed to create bot", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create bot")
		return
	}

	writeJSON(w, http.StatusCreated, bot)
}

// Get handles GET /api/v1/bots/{id}
func (h *BotHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	bot, err := h.store.GetBot(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bot not found")
			return
		}
		h.logger.Error("failed to get bot",
			zap.String("bot_id", id),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get bot")
		return
	}
	if bot.TenantID != tenantID {
		writeError(w, http.StatusNotFound, "bot not found")
		return
	}

	writeJSON(w, http.StatusOK, bot)
}
