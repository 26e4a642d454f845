package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
)

func TestIncrementDailyAccumulates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(0, 0)
	env.seedBot(ctx)

	env.stats.RecordMessage(ctx, "t1", "bot-1", DirectionIn)
	env.stats.RecordMessage(ctx, "t1", "bot-1", DirectionOut)
	env.stats.RecordCase(ctx, "t1", "bot-1", CaseChangeNew)
	env.stats.RecordFollow(ctx, "t1", "bot-1", true)
	env.stats.RecordFollow(ctx, "t1", "bot-1", false)

	stat, err := env.store.GetDailyStat(ctx, "bot-1", model.DateKey(env.clock.Now()))
	require.NoError(t, err)
	require.Equal(t, int64(4), stat.Total, "messages and follow events count toward total")
	require.Equal(t, int64(1), stat.MessageIn)
	require.Equal(t, int64(1), stat.MessageOut)
	require.Equal(t, int64(1), stat.CasesNew)
	require.Equal(t, int64(1), stat.Follow)
	require.Equal(t, int64(1), stat.Unfollow)
}

func TestIncrementDailyConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(0, 0)
	env.seedBot(ctx)

	const workers = 50
	const perWorker = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				env.stats.RecordMessage(ctx, "t1", "bot-1", DirectionIn)
			}
		}()
	}
	wg.Wait()

	stat, err := env.store.GetDailyStat(ctx, "bot-1", model.DateKey(env.clock.Now()))
	require.NoError(t, err)
	require.Equal(t, int64(workers*perWorker), stat.Total, "no increment may be lost")
	require.Equal(t, int64(workers*perWorker), stat.MessageIn)
}

func TestIncrementDailyResolvesTenantFromBot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(0, 0)
	env.seedBot(ctx)

	// Webhook-side callers only know the bot id.
	env.stats.RecordFollow(ctx, "", "bot-1", true)

	stat, err := env.store.GetDailyStat(ctx, "bot-1", model.DateKey(env.clock.Now()))
	require.NoError(t, err)
	require.Equal(t, "t1", stat.TenantID)
	require.Equal(t, int64(1), stat.Follow)
}

func TestIncrementDailySkipsUnknownBot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(0, 0)

	env.stats.RecordFollow(ctx, "", "ghost", true)

	_, err := env.store.GetDailyStat(ctx, "ghost", model.DateKey(env.clock.Now()))
	require.Error(t, err, "no row without a resolvable tenant")
	require.Empty(t, env.publisher.ofType(model.EventStatsUpdate))
}

func TestIncrementDailyZeroDelta(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(0, 0)
	env.seedBot(ctx)

	env.stats.IncrementDaily(ctx, "t1", "bot-1", model.StatDelta{})

	_, err := env.store.GetDailyStat(ctx, "bot-1", model.DateKey(env.clock.Now()))
	require.Error(t, err, "zero delta must not create a row")
	require.Empty(t, env.publisher.all())
}

func TestIncrementDailyBroadcastsDelta(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(0, 0)
	env.seedBot(ctx)

	env.stats.RecordMessage(ctx, "t1", "bot-1", DirectionIn)

	events := env.publisher.ofType(model.EventStatsUpdate)
	require.Len(t, events, 1)
	require.Equal(t, "t1", events[0].TenantID)

	payload, ok := events[0].Payload.(model.StatsUpdatePayload)
	require.True(t, ok)
	require.Equal(t, model.DateKey(env.clock.Now()), payload.DateKey)
	require.Equal(t, int64(1), payload.Delta.Total)
	require.Equal(t, int64(1), payload.Delta.MessageIn)
}
