package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AssignmentStatus string

const (
	AssignmentPending          AssignmentStatus = "pending"
	AssignmentApproved         AssignmentStatus = "approved"
	AssignmentRejected         AssignmentStatus = "rejected"
	AssignmentChangesRequested AssignmentStatus = "changes_requested"
	AssignmentCompleted        AssignmentStatus = "completed"
)

// Terminal reports whether no further advancement can happen on an
// assignment in this status. Only pending assignments advance.
func (s AssignmentStatus) Terminal() bool {
	return s != AssignmentPending
}

type ReviewAction string

const (
	ActionApprove        ReviewAction = "approve"
	ActionReject         ReviewAction = "reject"
	ActionRequestChanges ReviewAction = "request_changes"
)

func (a ReviewAction) Valid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionRequestChanges:
		return true
	}
	return false
}

type StepHistoryEntry struct {
	StepID    uuid.UUID    `json:"step_id"`
	Action    ReviewAction `json:"action"`
	ActorID   string       `json:"actor_id"`
	Timestamp time.Time    `json:"timestamp"`
}

type StepHistory []StepHistoryEntry

func (h StepHistory) Value() (driver.Value, error) {
	if h == nil {
		return json.Marshal(StepHistory{})
	}
	return json.Marshal(h)
}

func (h *StepHistory) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan StepHistory: %v", value)
	}
	return json.Unmarshal(bytes, h)
}

func (StepHistory) GormDataType() string {
	return "jsonb"
}

// ApproveCount counts approve entries recorded for one step.
func (h StepHistory) ApproveCount(stepID uuid.UUID) int {
	count := 0
	for _, entry := range h {
		if entry.StepID == stepID && entry.Action == ActionApprove {
			count++
		}
	}
	return count
}

// Assignment is the live state-machine instance tracking one post's
// progress through a workflow. At most one non-terminal assignment
// exists per post. Version backs the optimistic concurrency check on
// every status/step-history write.
type Assignment struct {
	ID            uuid.UUID        `gorm:"type:uuid;primary_key"`
	PostID        uuid.UUID        `gorm:"type:uuid;not null;index"`
	WorkflowID    uuid.UUID        `gorm:"type:uuid;not null;index"`
	Workflow      *Workflow        `gorm:"foreignKey:WorkflowID"`
	CurrentStepID uuid.UUID        `gorm:"type:uuid;not null"`
	Status        AssignmentStatus `gorm:"type:varchar(32);not null;default:'pending';index"`
	StepHistory   StepHistory      `gorm:"type:jsonb;default:'[]'"`
	Version       int              `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
