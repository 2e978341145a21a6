package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/metrics"
	"github.com/modgate/modgate/pkg/model"
)

type Repository interface {
	ListPending(ctx context.Context, limit int) ([]model.NotificationEvent, error)
	MarkPublished(ctx context.Context, eventID uuid.UUID, publishedAt time.Time) error
	MarkFailed(ctx context.Context, eventID uuid.UUID) error
}

// Writer is the slice of kafka.Writer the relay needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Relay drains pending notification rows to the broker. A row reaches
// exactly one of published or failed; rows that fail to publish go to
// the dead-letter topic so delivery workers never silently lose a
// notification.
type Relay struct {
	repo         Repository
	writer       Writer
	dlqWriter    Writer
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
}

// Message is the broker payload for a notification event.
type Message struct {
	EventID    string      `json:"event_id"`
	EventType  string      `json:"event_type"`
	Recipients []string    `json:"recipients"`
	Payload    model.JSONB `json:"payload"`
	CreatedAt  time.Time   `json:"created_at"`
}

type DLQMessage struct {
	Event    Message   `json:"event"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func NewRelay(repo Repository, writer, dlqWriter Writer, logger *zap.Logger, pollInterval time.Duration, batchSize int) *Relay {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		repo:         repo,
		writer:       writer,
		dlqWriter:    dlqWriter,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay starting",
		zap.Duration("poll_interval", r.pollInterval),
		zap.Int("batch_size", r.batchSize),
	)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.ProcessPending(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.ProcessPending(ctx)
		}
	}
}

func (r *Relay) ProcessPending(ctx context.Context) {
	events, err := r.repo.ListPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Warn("failed to list pending notifications", zap.Error(err))
		return
	}

	for i := range events {
		if err := r.publishEvent(ctx, &events[i]); err != nil {
			r.logger.Warn("failed to relay notification",
				zap.Error(err), zap.String("event_id", events[i].EventID.String()))
		}
	}
}

func (r *Relay) publishEvent(ctx context.Context, event *model.NotificationEvent) error {
	message := Message{
		EventID:    event.EventID.String(),
		EventType:  event.EventType,
		Recipients: event.Recipients,
		Payload:    event.Payload,
		CreatedAt:  event.CreatedAt,
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(event.EventID.String()),
		Value: payload,
		Time:  time.Now(),
	}

	if err := r.writer.WriteMessages(ctx, kafkaMessage); err != nil {
		r.logger.Warn("broker publish failed, routing to DLQ",
			zap.Error(err), zap.String("event_id", event.EventID.String()))
		metrics.OutboxRelayedTotal.WithLabelValues("failed").Inc()
		return r.publishDLQ(ctx, message, err, event.EventID)
	}

	if err := r.repo.MarkPublished(ctx, event.EventID, time.Now()); err != nil {
		return err
	}

	metrics.OutboxRelayedTotal.WithLabelValues("published").Inc()
	return nil
}

func (r *Relay) publishDLQ(ctx context.Context, message Message, publishErr error, eventID uuid.UUID) error {
	dlq := DLQMessage{
		Event:    message,
		Error:    publishErr.Error(),
		FailedAt: time.Now(),
	}

	payload, err := json.Marshal(dlq)
	if err != nil {
		return err
	}

	if err := r.dlqWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(message.EventID),
		Value: payload,
		Time:  time.Now(),
	}); err != nil {
		return err
	}

	return r.repo.MarkFailed(ctx, eventID)
}
