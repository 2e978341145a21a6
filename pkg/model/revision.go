package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const RevisionReasonRestored = "restored_version"

// RevisionSnapshot captures the post fields frozen by a revision. Only
// the fields present in the snapshot are applied back on restore.
type RevisionSnapshot struct {
	Content     *string    `json:"content,omitempty"`
	MediaURLs   []string   `json:"media_urls,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

func (s RevisionSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *RevisionSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = RevisionSnapshot{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan RevisionSnapshot: %v", value)
	}
	return json.Unmarshal(bytes, s)
}

func (RevisionSnapshot) GormDataType() string {
	return "jsonb"
}

// Revision is an immutable content snapshot. Restoring writes a new
// revision with metadata.restored_from set; old rows are never touched.
type Revision struct {
	ID        uuid.UUID        `gorm:"type:uuid;primary_key"`
	PostID    uuid.UUID        `gorm:"type:uuid;not null;index"`
	ActorID   string           `gorm:"not null"`
	Snapshot  RevisionSnapshot `gorm:"type:jsonb;not null"`
	Metadata  JSONB            `gorm:"type:jsonb"`
	Reason    string
	CreatedAt time.Time `gorm:"index"`
}
