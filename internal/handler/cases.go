package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/middleware"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/service"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/storage"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/logger"
)

// CaseHandler handles the operator case endpoints.
type CaseHandler struct {
	store  storage.Store
	cases  *service.CaseService
	logger *logger.Logger
}

// NewCaseHandler creates a new case handler.
func NewCaseHandler(store storage.Store, cases *service.CaseService, log *logger.Logger) *CaseHandler {
	return &CaseHandler{
		store:  store,
		cases:  cases,
		logger: log,
	}
}

// List handles GET /api/v1/cases
func (h *CaseHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	f := storage.CaseFilter{
		BotID:  r.URL.Query().Get("bot_id"),
		Status: model.CaseStatus(r.URL.Query().Get("status")),
		Limit:  50,
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			f.Limit = parsed
		}
	}

	cases, err := h.store.ListCases(ctx, tenantID, f)
	if err != nil {
		h.logger.Error("failed to list cases", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list cases")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cases": cases,
		"count": len(cases),
	})
}

// Get handles GET /api/v1/cases/{id}
func (h *CaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	c, err := h.store.GetCase(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "case not found")
			return
		}
		h.logger.Error("failed to get case",
			zap.String("case_id", id),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get case")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// UpdateStatus handles POST /api/v1/cases/{id}/status
func (h *CaseHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	userID := middleware.GetUserID(ctx)
	id := chi.URLParam(r, "id")

	var req struct {
		Status model.CaseStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Status {
	case model.CasePending, model.CaseReview, model.CaseResolved:
	default:
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	c, err := h.cases.UpdateStatus(ctx, tenantID, id, req.Status, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "case not found")
			return
		}
		if errors.Is(err, service.ErrInvalidTransition) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to update case status",
			zap.String("case_id", id),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update case status")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// Messages handles GET /api/v1/cases/{id}/messages: the transcript of the
// session the case was opened from. Going through the case keeps the lookup
// tenant-scoped.
func (h *CaseHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	c, err := h.store.GetCase(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "case not found")
			return
		}
		h.logger.Error("failed to get case",
			zap.String("case_id", id),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get case")
		return
	}
	if c.SessionID == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"messages": []model.Message{},
			"count":    0,
		})
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	messages, err := h.store.ListMessages(ctx, *c.SessionID, limit)
	if err != nil {
		h.logger.Error("failed to list messages",
			zap.String("case_id", id),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

// StatsHandler serves the per-bot daily counters.
type StatsHandler struct {
	store  storage.Store
	logger *logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(store storage.Store, log *logger.Logger) *StatsHandler {
	return &StatsHandler{
		store:  store,
		logger: log,
	}
}

// Daily handles GET /api/v1/stats/{botID}. The date query parameter defaults
// to today (UTC).
func (h *StatsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	botID := chi.URLParam(r, "botID")

	dateKey := r.URL.Query().Get("date")
	if dateKey == "" {
		dateKey = model.DateKey(time.Now())
	} else if _, err := time.Parse("2006-01-02", dateKey); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	stat, err := h.store.GetDailyStat(ctx, botID, dateKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// No traffic yet that day: an all-zero row, not a 404.
			writeJSON(w, http.StatusOK, &model.DailyStat{BotID: botID, DateKey: dateKey})
			return
		}
		h.logger.Error("failed to load daily stat",
			zap.String("bot_id", botID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load daily stat")
		return
	}

	writeJSON(w, http.StatusOK, stat)
}
