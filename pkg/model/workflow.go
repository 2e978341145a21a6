package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type WorkflowScope string

const (
	ScopeGlobal WorkflowScope = "global"
	ScopeTeam   WorkflowScope = "team"
	ScopeUser   WorkflowScope = "user"
)

type ApproverType string

const (
	ApproverUser ApproverType = "user"
	ApproverRole ApproverType = "role"
	ApproverTeam ApproverType = "team"
)

type Workflow struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key"`
	OwnerID      string         `gorm:"not null;index"`
	Name         string         `gorm:"not null"`
	Scope        WorkflowScope  `gorm:"type:varchar(20);not null;default:'global';index"`
	ScopeFilters pq.StringArray `gorm:"type:text[]"`
	IsActive     bool           `gorm:"not null;default:true;index"`
	Steps        []WorkflowStep `gorm:"foreignKey:WorkflowID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Step order values are unique and strictly increasing within a workflow.
type WorkflowStep struct {
	ID                     uuid.UUID    `gorm:"type:uuid;primary_key"`
	WorkflowID             uuid.UUID    `gorm:"type:uuid;not null;index"`
	Order                  int          `gorm:"column:step_order;not null"`
	Name                   string       `gorm:"not null"`
	ApproverType           ApproverType `gorm:"type:varchar(20);not null"`
	ApproverRef            string       `gorm:"not null"`
	MinApprovals           int          `gorm:"not null;default:1"`
	AutoEscalateAfterHours *int
	IsOptional             bool `gorm:"not null;default:false"`
	SLAHours               *int
}

// FirstStep returns the step with the lowest order, or nil when the
// workflow has no steps.
func (w *Workflow) FirstStep() *WorkflowStep {
	var first *WorkflowStep
	for i := range w.Steps {
		if first == nil || w.Steps[i].Order < first.Order {
			first = &w.Steps[i]
		}
	}
	return first
}

// StepByID locates a step by id, or nil when no such step exists.
func (w *Workflow) StepByID(id uuid.UUID) *WorkflowStep {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i]
		}
	}
	return nil
}

// NextStep returns the step that immediately follows the given order,
// or nil when the given order belongs to the last step.
func (w *Workflow) NextStep(after int) *WorkflowStep {
	var next *WorkflowStep
	for i := range w.Steps {
		if w.Steps[i].Order <= after {
			continue
		}
		if next == nil || w.Steps[i].Order < next.Order {
			next = &w.Steps[i]
		}
	}
	return next
}

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONB) GormDataType() string {
	return "jsonb"
}
