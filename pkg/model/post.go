package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostStatus string

const (
	PostDraft         PostStatus = "draft"
	PostInReview      PostStatus = "in_review"
	PostApproved      PostStatus = "approved"
	PostRejected      PostStatus = "rejected"
	PostNeedsRevision PostStatus = "needs_revision"
	PostScheduled     PostStatus = "scheduled"
	PostPublished     PostStatus = "published"
)

type Post struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key"`
	AuthorID    string         `gorm:"not null;index"`
	TeamID      string         `gorm:"index"`
	Title       string         `gorm:"not null"`
	Content     string         `gorm:"type:text"`
	MediaURLs   pq.StringArray `gorm:"type:text[]"`
	ScheduledAt *time.Time
	Status      PostStatus `gorm:"type:varchar(32);not null;default:'draft';index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type MembershipKind string

const (
	MembershipRole MembershipKind = "role"
	MembershipTeam MembershipKind = "team"
)

// Membership maps an actor to a role or team. The engine walks these
// rows to expand role/team approver references into concrete actors
// and back; it never issues identities.
type Membership struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key"`
	ActorID   string         `gorm:"not null;uniqueIndex:idx_membership_actor_kind_ref"`
	Kind      MembershipKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_membership_actor_kind_ref"`
	Ref       string         `gorm:"not null;uniqueIndex:idx_membership_actor_kind_ref;index"`
	CreatedAt time.Time
}
