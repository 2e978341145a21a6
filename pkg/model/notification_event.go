package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
	OutboxStatusFailed    = "failed"
)

const (
	EventStepPending      = "step_pending"
	EventPostApproved     = "post_approved"
	EventPostRejected     = "post_rejected"
	EventChangesRequested = "changes_requested"
	EventCommentMention   = "comment_mention"
	EventSLAEscalation    = "sla_escalation"
)

// NotificationEvent is an outbox row: the dispatcher inserts it in the
// same store as the state change, the relay publishes it to the broker.
type NotificationEvent struct {
	EventID     uuid.UUID      `gorm:"type:uuid;primary_key"`
	EventType   string         `gorm:"not null"`
	Recipients  pq.StringArray `gorm:"type:text[];not null"`
	Payload     JSONB          `gorm:"type:jsonb;not null"`
	Status      string         `gorm:"not null;default:'pending';index"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;not null"`
	PublishedAt *time.Time
}

func (NotificationEvent) TableName() string {
	return "notification_events"
}
