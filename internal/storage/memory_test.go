package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
)

func strPtr(s string) *string { return &s }

func TestUpsertSessionIdentity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	first, err := m.UpsertSession(ctx, &model.Session{
		TenantID: "t1", BotID: "b1", Platform: model.PlatformLINE, UserID: "U1", DisplayName: "Somchai",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	again, err := m.UpsertSession(ctx, &model.Session{
		TenantID: "t1", BotID: "b1", Platform: model.PlatformLINE, UserID: "U1",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, "Somchai", again.DisplayName, "empty display name leaves the stored one")

	renamed, err := m.UpsertSession(ctx, &model.Session{
		TenantID: "t1", BotID: "b1", Platform: model.PlatformLINE, UserID: "U1", DisplayName: "Somchai J",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, renamed.ID)
	require.Equal(t, "Somchai J", renamed.DisplayName)

	other, err := m.UpsertSession(ctx, &model.Session{
		TenantID: "t1", BotID: "b1", Platform: model.PlatformTelegram, UserID: "U1",
	})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID, "platform is part of the identity")
}

func TestUpsertSessionConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	const workers = 30
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.UpsertSession(ctx, &model.Session{
				TenantID: "t1", BotID: "b1", Platform: model.PlatformLINE, UserID: "U1",
			})
			if err == nil {
				ids[i] = s.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		require.Equal(t, ids[0], id, "concurrent upserts must converge on one session")
	}
}

func TestCreateMessageDuplicateGuard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	first := &model.Message{SessionID: "s1", PlatformMessageID: strPtr("m1"), Text: "hi"}
	require.NoError(t, m.CreateMessage(ctx, first))

	dup := &model.Message{SessionID: "s1", PlatformMessageID: strPtr("m1"), Text: "hi again"}
	require.ErrorIs(t, m.CreateMessage(ctx, dup), ErrDuplicateMessage)

	seen, err := m.HasMessage(ctx, "s1", "m1")
	require.NoError(t, err)
	require.True(t, seen)

	seen, err = m.HasMessage(ctx, "s2", "m1")
	require.NoError(t, err)
	require.False(t, seen, "uniqueness is per session")

	otherSession := &model.Message{SessionID: "s2", PlatformMessageID: strPtr("m1")}
	require.NoError(t, m.CreateMessage(ctx, otherSession))

	// Messages without a platform id never collide.
	require.NoError(t, m.CreateMessage(ctx, &model.Message{SessionID: "s1", Text: "a"}))
	require.NoError(t, m.CreateMessage(ctx, &model.Message{SessionID: "s1", Text: "b"}))
}

func TestFindRecentCaseWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	stale := &model.Case{
		TenantID: "t1", UserID: "U1", Kind: "deposit_missing",
		CreatedAt: base.Add(-time.Hour), UpdatedAt: base.Add(-time.Hour),
	}
	require.NoError(t, m.CreateCase(ctx, stale))

	q := CaseQuery{TenantID: "t1", UserID: "U1", Kind: "deposit_missing", Since: base.Add(-15 * time.Minute)}
	_, err := m.FindRecentCase(ctx, q)
	require.ErrorIs(t, err, ErrNotFound)

	// A merge bumps updated_at back into the window.
	stale.UpdatedAt = base.Add(-5 * time.Minute)
	require.NoError(t, m.UpdateCase(ctx, stale))

	found, err := m.FindRecentCase(ctx, q)
	require.NoError(t, err)
	require.Equal(t, stale.ID, found.ID)

	// Session filter applies only when the query carries one.
	withSession := q
	withSession.SessionID = strPtr("s9")
	_, err = m.FindRecentCase(ctx, withSession)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindRecentCasePicksNewest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	older := &model.Case{
		TenantID: "t1", UserID: "U1", Kind: "complaint",
		CreatedAt: base.Add(-10 * time.Minute), UpdatedAt: base.Add(-10 * time.Minute),
	}
	newer := &model.Case{
		TenantID: "t1", UserID: "U1", Kind: "complaint",
		CreatedAt: base.Add(-2 * time.Minute), UpdatedAt: base.Add(-2 * time.Minute),
	}
	require.NoError(t, m.CreateCase(ctx, older))
	require.NoError(t, m.CreateCase(ctx, newer))

	found, err := m.FindRecentCase(ctx, CaseQuery{
		TenantID: "t1", UserID: "U1", Kind: "complaint", Since: base.Add(-15 * time.Minute),
	})
	require.NoError(t, err)
	require.Equal(t, newer.ID, found.ID)
}

func TestNotificationOnePerCase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	n := &model.Notification{TenantID: "t1", CaseID: "c1", Kind: "deposit_missing"}
	require.NoError(t, m.CreateNotification(ctx, n))

	again := &model.Notification{TenantID: "t1", CaseID: "c1", Kind: "deposit_missing"}
	require.ErrorIs(t, m.CreateNotification(ctx, again), ErrDuplicateNotification)

	other := &model.Notification{TenantID: "t1", CaseID: "c2", Kind: "complaint"}
	require.NoError(t, m.CreateNotification(ctx, other))
}

func TestMarkNotificationRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	n := &model.Notification{TenantID: "t1", CaseID: "c1"}
	require.NoError(t, m.CreateNotification(ctx, n))

	read, err := m.MarkNotificationRead(ctx, "t1", n.ID, "op-1")
	require.NoError(t, err)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)
	require.Equal(t, "op-1", read.ReadBy)

	_, err = m.MarkNotificationRead(ctx, "t2", n.ID, "op-1")
	require.ErrorIs(t, err, ErrNotFound, "tenant scoping applies")

	unread, err := m.ListNotifications(ctx, "t1", NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, unread)
}

func TestIncrementDailyStatConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	const workers = 40
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.IncrementDailyStat(ctx, "t1", "b1", "2025-06-01", model.StatDelta{Total: 1, MessageIn: 1}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	stat, err := m.GetDailyStat(ctx, "b1", "2025-06-01")
	require.NoError(t, err)
	require.Equal(t, int64(workers), stat.Total)
	require.Equal(t, int64(workers), stat.MessageIn)
}

func TestListCasesFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.CreateCase(ctx, &model.Case{TenantID: "t1", BotID: "b1", UserID: "U1", Kind: "complaint", Status: model.CasePending}))
	require.NoError(t, m.CreateCase(ctx, &model.Case{TenantID: "t1", BotID: "b2", UserID: "U2", Kind: "complaint", Status: model.CaseResolved}))
	require.NoError(t, m.CreateCase(ctx, &model.Case{TenantID: "t2", BotID: "b1", UserID: "U3", Kind: "complaint", Status: model.CasePending}))

	all, err := m.ListCases(ctx, "t1", CaseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	pending, err := m.ListCases(ctx, "t1", CaseFilter{Status: model.CasePending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "U1", pending[0].UserID)

	byBot, err := m.ListCases(ctx, "t1", CaseFilter{BotID: "b2"})
	require.NoError(t, err)
	require.Len(t, byBot, 1)
}
