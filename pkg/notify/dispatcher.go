package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/metrics"
	"github.com/modgate/modgate/pkg/model"
)

// Dispatcher fans a notification out to a recipient set. Callers treat
// dispatch as best-effort: an Enqueue failure is logged and swallowed,
// never surfaced to the reviewer whose action triggered it.
type Dispatcher interface {
	Enqueue(ctx context.Context, recipientIDs []string, eventType string, payload model.JSONB) error
}

type OutboxStore interface {
	Create(ctx context.Context, event *model.NotificationEvent) error
}

// OutboxDispatcher persists notifications as pending outbox rows; the
// relay process moves them to the broker. Delivery beyond the broker
// is someone else's job.
type OutboxDispatcher struct {
	outbox OutboxStore
	logger *zap.Logger
}

func NewOutboxDispatcher(outbox OutboxStore, logger *zap.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{outbox: outbox, logger: logger}
}

func (d *OutboxDispatcher) Enqueue(ctx context.Context, recipientIDs []string, eventType string, payload model.JSONB) error {
	if len(recipientIDs) == 0 {
		return nil
	}

	event := &model.NotificationEvent{
		EventID:    uuid.New(),
		EventType:  eventType,
		Recipients: recipientIDs,
		Payload:    payload,
		Status:     model.OutboxStatusPending,
	}

	if err := d.outbox.Create(ctx, event); err != nil {
		return err
	}

	metrics.NotificationsTotal.WithLabelValues(eventType).Inc()
	d.logger.Debug("notification enqueued",
		zap.String("event_type", eventType),
		zap.Int("recipients", len(recipientIDs)),
	)
	return nil
}
