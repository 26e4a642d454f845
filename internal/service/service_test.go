package service

import (
	"context"
	"sync"
	"time"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/classify"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/storage"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/logger"
)

// capturePublisher records broadcast events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []model.BroadcastEvent
}

func (p *capturePublisher) Publish(e model.BroadcastEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturePublisher) all() []model.BroadcastEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.BroadcastEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturePublisher) ofType(t model.EventType) []model.BroadcastEvent {
	var out []model.BroadcastEvent
	for _, e := range p.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// stubClassifier returns a fixed result.
type stubClassifier struct {
	result classify.Result
}

func (s stubClassifier) Classify(context.Context, *model.Bot, model.Platform, string) classify.Result {
	return s.result
}

// testClock is a settable clock for the services' now hooks.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{t: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testEnv bundles the pipeline services over the in-memory store.
type testEnv struct {
	store     *storage.Memory
	publisher *capturePublisher
	clock     *testClock
	stats     *StatService
	cases     *CaseService
}

func newTestEnv(window, maxOpenAge time.Duration) *testEnv {
	store := storage.NewMemory()
	pub := &capturePublisher{}
	clock := newTestClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	log := logger.NewNop()

	stats := NewStatService(store, pub, log)
	stats.now = clock.Now

	cases := NewCaseService(store, stats, pub, log, window, maxOpenAge)
	cases.now = clock.Now

	return &testEnv{
		store:     store,
		publisher: pub,
		clock:     clock,
		stats:     stats,
		cases:     cases,
	}
}

func (e *testEnv) seedBot(ctx context.Context) *model.Bot {
	bot := &model.Bot{
		ID:           "bot-1",
		TenantID:     "t1",
		Name:         "support",
		SystemPrompt: "You are a support bot.",
		Model:        "test-model",
		Enabled:      true,
	}
	if err := e.store.CreateBot(ctx, bot); err != nil {
		panic(err)
	}
	return bot
}
