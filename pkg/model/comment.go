package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type CommentType string

const (
	CommentFeedback        CommentType = "feedback"
	CommentApproval        CommentType = "approval"
	CommentRejection       CommentType = "rejection"
	CommentRevisionRequest CommentType = "revision_request"
)

// Comment is one message in a review discussion. A root comment's
// ThreadID equals its own ID; a reply inherits its parent's ThreadID.
// Ids are generated client-side so the thread pointer is set in the
// same insert that creates the row.
type Comment struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key"`
	PostID          uuid.UUID      `gorm:"type:uuid;not null;index"`
	ActorID         string         `gorm:"not null;index"`
	Body            string         `gorm:"type:text;not null"`
	Type            CommentType    `gorm:"type:varchar(32);not null;default:'feedback'"`
	ParentCommentID *uuid.UUID     `gorm:"type:uuid;index"`
	ThreadID        uuid.UUID      `gorm:"type:uuid;not null;index"`
	IsResolved      bool           `gorm:"not null;default:false"`
	ResolvedBy      string
	ResolvedAt      *time.Time
	Resolution      string         `gorm:"type:text"`
	Mentions        pq.StringArray `gorm:"type:text[]"`
	StepID          *uuid.UUID     `gorm:"type:uuid"`
	CreatedAt       time.Time      `gorm:"index"`
}
