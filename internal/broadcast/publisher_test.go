package broadcast

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
)

func TestSubject(t *testing.T) {
	t.Parallel()

	require.Equal(t, "rt.t1.chat.message.new", Subject("t1", model.EventChatMessageNew))
	require.Equal(t, "rt.t1.case.new", Subject("t1", model.EventCaseNew))
	require.Equal(t, "rt.acme.stats.update", Subject("acme", model.EventStatsUpdate))
}

func TestNopPublisher(t *testing.T) {
	t.Parallel()

	// Must not panic without a connection.
	NopPublisher{}.Publish(model.BroadcastEvent{Type: model.EventCaseNew, TenantID: "t1"})
}
