package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionDetails carries the optional free-text attached to a review
// action. Each field is independently nullable; a HistoryEntry whose
// comment and reason are both absent stores NULL instead of an empty
// object.
type ActionDetails struct {
	Comment *string `json:"comment"`
	Reason  *string `json:"reason"`
}

func (d *ActionDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *ActionDetails) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan ActionDetails: %v", value)
	}
	return json.Unmarshal(bytes, d)
}

func (*ActionDetails) GormDataType() string {
	return "jsonb"
}

// NewActionDetails builds the details payload for a history entry:
// nil when both comment and reason are empty, otherwise each present
// value is kept and the other field stays null.
func NewActionDetails(comment, reason string) *ActionDetails {
	if comment == "" && reason == "" {
		return nil
	}
	details := &ActionDetails{}
	if comment != "" {
		details.Comment = &comment
	}
	if reason != "" {
		details.Reason = &reason
	}
	return details
}

// HistoryEntry is an append-only audit record. Rows are inserted once
// and never updated or deleted.
type HistoryEntry struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key"`
	PostID        uuid.UUID      `gorm:"type:uuid;not null;index"`
	ActorID       string         `gorm:"not null;index"`
	Action        string         `gorm:"not null"`
	ActionDetails *ActionDetails `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"index"`
}

func (HistoryEntry) TableName() string {
	return "history_entries"
}
