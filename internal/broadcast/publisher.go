package broadcast

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/logger"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/metrics"
)

// SubjectPrefix is the prefix of all realtime fan-out subjects.
const SubjectPrefix = "rt"

// Publisher is the narrow capability the pipeline holds for fan-out.
type Publisher interface {
	Publish(event model.BroadcastEvent)
}

// Subject returns the tenant-scoped subject for an event type, e.g.
// rt.<tenant>.chat.message.new. Ordering is only meaningful within a single
// subscriber connection.
func Subject(tenantID string, eventType model.EventType) string {
	suffix := strings.ReplaceAll(string(eventType), ":", ".")
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, tenantID, suffix)
}

// NATSPublisher publishes events over a NATS connection.
type NATSPublisher struct {
	client *Client
	logger *logger.Logger
}

// NewNATSPublisher creates a publisher on top of an established connection.
func NewNATSPublisher(client *Client, log *logger.Logger) *NATSPublisher {
	return &NATSPublisher{client: client, logger: log}
}

// Publish sends one event. Errors are logged and swallowed; fan-out is not
// on the correctness path of the pipeline.
func (p *NATSPublisher) Publish(event model.BroadcastEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.drop(event, err)
		return
	}
	if err := p.client.Conn().Publish(Subject(event.TenantID, event.Type), data); err != nil {
		p.drop(event, err)
	}
}

func (p *NATSPublisher) drop(event model.BroadcastEvent, err error) {
	metrics.BroadcastFailures.WithLabelValues(string(event.Type)).Inc()
	p.logger.Warn("broadcast dropped",
		zap.String("event", string(event.Type)),
		zap.String("tenant_id", event.TenantID),
		zap.Error(err),
	)
}

// NopPublisher discards all events. Used when NATS is not configured.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(model.BroadcastEvent) {}
