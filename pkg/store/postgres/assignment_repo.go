package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modgate/modgate/pkg/model"
	"github.com/modgate/modgate/pkg/store"
)

type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new assignment. The partial unique index on
// (post_id) WHERE status = 'pending' rejects a second pending row for
// the same post; the duplicate-key error comes back as
// store.ErrConflict.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *model.Assignment) error {
	return store.Translate(r.db.WithContext(ctx).Create(assignment).Error)
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	var assignment model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Workflow").
		Preload("Workflow.Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		First(&assignment, "id = ?", id).Error
	if err != nil {
		return nil, store.Translate(err)
	}
	return &assignment, nil
}

// GetActiveByPostID returns the one non-terminal assignment for a post.
func (r *AssignmentRepository) GetActiveByPostID(ctx context.Context, postID uuid.UUID) (*model.Assignment, error) {
	var assignment model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Workflow").
		Preload("Workflow.Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Where("post_id = ? AND status = ?", postID, model.AssignmentPending).
		First(&assignment).Error
	if err != nil {
		return nil, store.Translate(err)
	}
	return &assignment, nil
}

// UpdateWithVersion writes the assignment's step pointer, status and
// step history, conditioned on the row still carrying the expected
// version. A zero-row update means another writer got there first and
// surfaces as store.ErrConflict so the caller can reload and retry.
func (r *AssignmentRepository) UpdateWithVersion(ctx context.Context, assignment *model.Assignment, expectedVersion int) error {
	updates := map[string]interface{}{
		"current_step_id": assignment.CurrentStepID,
		"status":          assignment.Status,
		"step_history":    assignment.StepHistory,
		"version":         expectedVersion + 1,
		"updated_at":      time.Now(),
	}

	result := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("id = ? AND version = ?", assignment.ID, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrConflict
	}

	assignment.Version = expectedVersion + 1
	return nil
}

// ListPendingForApprover returns pending assignments whose current
// step's approver reference matches the actor directly or through one
// of the actor's roles/teams.
func (r *AssignmentRepository) ListPendingForApprover(ctx context.Context, actorID string, roles, teams []string, postID *uuid.UUID) ([]model.Assignment, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Joins("JOIN workflow_steps ON workflow_steps.id = assignments.current_step_id").
		Where("assignments.status = ?", model.AssignmentPending)

	match := r.db.Where(
		"workflow_steps.approver_type = ? AND workflow_steps.approver_ref = ?",
		model.ApproverUser, actorID,
	)
	if len(roles) > 0 {
		match = match.Or(
			"workflow_steps.approver_type = ? AND workflow_steps.approver_ref IN ?",
			model.ApproverRole, roles,
		)
	}
	if len(teams) > 0 {
		match = match.Or(
			"workflow_steps.approver_type = ? AND workflow_steps.approver_ref IN ?",
			model.ApproverTeam, teams,
		)
	}
	query = query.Where(match)

	if postID != nil {
		query = query.Where("assignments.post_id = ?", *postID)
	}

	var assignments []model.Assignment
	err := query.
		Preload("Workflow").
		Preload("Workflow.Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Order("assignments.created_at ASC").
		Find(&assignments).Error
	return assignments, err
}

// ListPending returns every pending assignment, oldest first. Used by
// the SLA escalator scan.
func (r *AssignmentRepository) ListPending(ctx context.Context) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Workflow").
		Preload("Workflow.Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Where("status = ?", model.AssignmentPending).
		Order("created_at ASC").
		Find(&assignments).Error
	return assignments, err
}
