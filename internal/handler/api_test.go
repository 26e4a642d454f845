package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/broadcast"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/middleware"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/service"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/storage"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/logger"
)

// asOperator injects the identity the JWT middleware would have resolved.
func asOperator(tenantID, userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.TenantIDKey, tenantID)
			ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type apiFixture struct {
	store  *storage.Memory
	cases  *service.CaseService
	router *chi.Mux
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := storage.NewMemory()
	log := logger.NewNop()
	pub := broadcast.NopPublisher{}

	stats := service.NewStatService(store, pub, log)
	cases := service.NewCaseService(store, stats, pub, log, 15*time.Minute, 0)

	notificationHandler := NewNotificationHandler(store, log)
	caseHandler := NewCaseHandler(store, cases, log)
	statsHandler := NewStatsHandler(store, log)
	botHandler := NewBotHandler(store, log)

	r := chi.NewRouter()
	r.Use(asOperator("t1", "op-1"))
	r.Get("/notifications", notificationHandler.List)
	r.Post("/notifications/{id}/read", notificationHandler.MarkRead)
	r.Get("/cases", caseHandler.List)
	r.Get("/cases/{id}", caseHandler.Get)
	r.Get("/cases/{id}/messages", caseHandler.Messages)
	r.Post("/cases/{id}/status", caseHandler.UpdateStatus)
	r.Get("/stats/{botID}", statsHandler.Daily)
	r.Post("/bots", botHandler.Create)
	r.Get("/bots/{id}", botHandler.Get)

	return &apiFixture{store: store, cases: cases, router: r}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) seedCase(t *testing.T) *model.Case {
	t.Helper()

	c, created, err := f.cases.CreateOrMerge(context.Background(), service.CaseInput{
		TenantID: "t1",
		BotID:    "bot-1",
		Platform: model.PlatformLINE,
		UserID:   "U1",
		Kind:     "deposit_missing",
		Text:     "ฝากเงินไม่เข้า",
	})
	require.NoError(t, err)
	require.True(t, created)
	return c
}

func TestNotificationListAndMarkRead(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	f.seedCase(t)

	rec := f.do(t, http.MethodGet, "/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Notifications []model.Notification `json:"notifications"`
		Count         int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Equal(t, 1, listResp.Count)
	n := listResp.Notifications[0]
	require.Equal(t, "Deposit not credited", n.Title)
	require.False(t, n.IsRead)

	rec = f.do(t, http.MethodPost, "/notifications/"+n.ID+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var read model.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &read))
	require.True(t, read.IsRead)
	require.Equal(t, "op-1", read.ReadBy)

	rec = f.do(t, http.MethodGet, "/notifications?unread=true", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Equal(t, 0, listResp.Count)

	rec = f.do(t, http.MethodPost, "/notifications/missing/read", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCaseListAndGet(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	c := f.seedCase(t)

	rec := f.do(t, http.MethodGet, "/cases?status=PENDING", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Cases []model.Case `json:"cases"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Equal(t, 1, listResp.Count)
	require.Equal(t, c.ID, listResp.Cases[0].ID)

	rec = f.do(t, http.MethodGet, "/cases/"+c.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/cases/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/cases?status=RESOLVED", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Equal(t, 0, listResp.Count)
}

func TestCaseStatusEndpoint(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	c := f.seedCase(t)

	rec := f.do(t, http.MethodPost, "/cases/"+c.ID+"/status", map[string]string{"status": "REVIEW"})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated model.Case
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, model.CaseReview, updated.Status)

	rec = f.do(t, http.MethodPost, "/cases/"+c.ID+"/status", map[string]string{"status": "RESOLVED"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, "op-1", updated.ResolvedBy)

	// RESOLVED -> REVIEW is not in the transition table.
	rec = f.do(t, http.MethodPost, "/cases/"+c.ID+"/status", map[string]string{"status": "REVIEW"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/cases/"+c.ID+"/status", map[string]string{"status": "WONTFIX"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/cases/missing/status", map[string]string{"status": "REVIEW"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCaseMessagesEndpoint(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	ctx := context.Background()

	session, err := f.store.UpsertSession(ctx, &model.Session{
		TenantID: "t1", BotID: "bot-1", Platform: model.PlatformLINE, UserID: "U1",
	})
	require.NoError(t, err)
	require.NoError(t, f.store.CreateMessage(ctx, &model.Message{
		SessionID: session.ID, TenantID: "t1", BotID: "bot-1",
		SenderType: model.SenderUser, Type: model.MessageText, Text: "ฝากเงินไม่เข้า",
	}))

	c, _, err := f.cases.CreateOrMerge(ctx, service.CaseInput{
		TenantID:  "t1",
		BotID:     "bot-1",
		Platform:  model.PlatformLINE,
		SessionID: &session.ID,
		UserID:    "U1",
		Kind:      "deposit_missing",
		Text:      "ฝากเงินไม่เข้า",
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/cases/"+c.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []model.Message `json:"messages"`
		Count    int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "ฝากเงินไม่เข้า", resp.Messages[0].Text)
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	ctx := context.Background()

	dateKey := model.DateKey(time.Now())
	require.NoError(t, f.store.IncrementDailyStat(ctx, "t1", "bot-1", dateKey, model.StatDelta{Total: 3, MessageIn: 2, MessageOut: 1}))

	rec := f.do(t, http.MethodGet, "/stats/bot-1?date="+dateKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stat model.DailyStat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stat))
	require.Equal(t, int64(3), stat.Total)
	require.Equal(t, int64(2), stat.MessageIn)

	// A day without traffic answers with zeros.
	rec = f.do(t, http.MethodGet, "/stats/bot-1?date=2001-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stat))
	require.Zero(t, stat.Total)

	rec = f.do(t, http.MethodGet, "/stats/bot-1?date=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBotEndpoints(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/bots", map[string]any{
		"name":           "support",
		"system_prompt":  "You are a support bot.",
		"intent_catalog": []string{"deposit_missing", "greeting"},
		"model":          "test-model",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var bot model.Bot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bot))
	require.Equal(t, "t1", bot.TenantID)
	require.True(t, bot.Enabled, "enabled defaults to true")
	require.True(t, bot.Configured())

	rec = f.do(t, http.MethodGet, "/bots/"+bot.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/bots", map[string]any{"system_prompt": "no name"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/bots/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
