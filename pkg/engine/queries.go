package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/model"
)

const (
	dashboardCacheKeyPrefix = "mg:dashboard:"
	dashboardCacheTTL       = 30 * time.Second
)

// PendingApprovals lists the assignments currently waiting on the
// actor, optionally narrowed to a single post.
func (e *Engine) PendingApprovals(ctx context.Context, actorID string, postID *uuid.UUID) ([]model.Assignment, error) {
	roles, teams, err := e.directory.GroupsFor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return e.assignments.ListPendingForApprover(ctx, actorID, roles, teams, postID)
}

type Stats struct {
	Approved         int64 `json:"approved"`
	Rejected         int64 `json:"rejected"`
	ChangesRequested int64 `json:"changes_requested"`
	PendingReview    int   `json:"pending_review"`
}

func (e *Engine) ApprovalStats(ctx context.Context, actorID string) (*Stats, error) {
	stats := &Stats{}

	var err error
	if stats.Approved, err = e.history.CountByAction(ctx, actorID, string(model.ActionApprove)); err != nil {
		return nil, err
	}
	if stats.Rejected, err = e.history.CountByAction(ctx, actorID, string(model.ActionReject)); err != nil {
		return nil, err
	}
	if stats.ChangesRequested, err = e.history.CountByAction(ctx, actorID, string(model.ActionRequestChanges)); err != nil {
		return nil, err
	}

	pending, err := e.PendingApprovals(ctx, actorID, nil)
	if err != nil {
		return nil, err
	}
	stats.PendingReview = len(pending)

	return stats, nil
}

type DashboardRow struct {
	AssignmentID string    `json:"assignment_id"`
	PostID       string    `json:"post_id"`
	PostTitle    string    `json:"post_title"`
	StepID       string    `json:"step_id"`
	StepName     string    `json:"step_name"`
	SubmittedAt  time.Time `json:"submitted_at"`
	WaitingHours float64   `json:"waiting_hours"`
}

// Dashboard returns the actor's pending queue enriched with post and
// step context, cached briefly in redis. Rows whose post cannot be
// loaded are skipped rather than failing the whole view.
func (e *Engine) Dashboard(ctx context.Context, actorID string) ([]DashboardRow, error) {
	cacheKey := dashboardCacheKeyPrefix + actorID

	if e.cache != nil {
		if cached, err := e.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var rows []DashboardRow
			if err := json.Unmarshal(cached, &rows); err == nil {
				return rows, nil
			}
		}
	}

	assignments, err := e.PendingApprovals(ctx, actorID, nil)
	if err != nil {
		return nil, err
	}

	rows := make([]DashboardRow, 0, len(assignments))
	now := time.Now()
	for i := range assignments {
		assignment := &assignments[i]

		post, err := e.posts.GetByID(ctx, assignment.PostID)
		if err != nil {
			e.logger.Warn("skipping dashboard row, post unavailable",
				zap.String("post_id", assignment.PostID.String()), zap.Error(err))
			continue
		}

		row := DashboardRow{
			AssignmentID: assignment.ID.String(),
			PostID:       assignment.PostID.String(),
			PostTitle:    post.Title,
			StepID:       assignment.CurrentStepID.String(),
			SubmittedAt:  assignment.CreatedAt,
			WaitingHours: now.Sub(assignment.CreatedAt).Hours(),
		}
		if assignment.Workflow != nil {
			if step := assignment.Workflow.StepByID(assignment.CurrentStepID); step != nil {
				row.StepName = step.Name
			}
		}
		rows = append(rows, row)
	}

	if e.cache != nil {
		if encoded, err := json.Marshal(rows); err == nil {
			if err := e.cache.Set(ctx, cacheKey, encoded, dashboardCacheTTL).Err(); err != nil {
				e.logger.Debug("failed to cache dashboard", zap.Error(err))
			}
		}
	}

	return rows, nil
}

// History reads the audit trail, newest first, optionally filtered by
// actor.
func (e *Engine) History(ctx context.Context, actorID string, limit, offset int) ([]model.HistoryEntry, error) {
	return e.history.List(ctx, actorID, limit, offset)
}
