package engine

import (
	"context"
	"testing"

	"github.com/modgate/modgate/pkg/model"
)

func TestPendingApprovalsMatchesRoleMembership(t *testing.T) {
	workflow := twoStepWorkflow()
	env := newTestEnv(workflow)
	ctx := context.Background()

	postID := env.addPost("author1")
	if _, err := env.engine.EnsureAssignment(ctx, postID, "author1", ""); err != nil {
		t.Fatalf("EnsureAssignment error: %v", err)
	}

	// first step is assigned to the named editor
	pending, err := env.engine.PendingApprovals(ctx, "editor", nil)
	if err != nil {
		t.Fatalf("PendingApprovals error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending assignment for editor, got %d", len(pending))
	}

	// a lawyer sees nothing until the assignment reaches the legal step
	pending, err = env.engine.PendingApprovals(ctx, "lawyer1", nil)
	if err != nil {
		t.Fatalf("PendingApprovals error: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending assignments for lawyer1, got %d", len(pending))
	}

	if err := env.engine.Advance(ctx, postID, "editor", model.ActionApprove, AdvanceOptions{}); err != nil {
		t.Fatalf("Advance error: %v", err)
	}

	env.directory.roles["lawyer1"] = []string{"legal"}
	pending, err = env.engine.PendingApprovals(ctx, "lawyer1", nil)
	if err != nil {
		t.Fatalf("PendingApprovals error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending assignment for lawyer1 after advance, got %d", len(pending))
	}
}

func TestApprovalStats(t *testing.T) {
	workflow := twoStepWorkflow()
	env := newTestEnv(workflow)
	ctx := context.Background()

	first := env.addPost("author1")
	second := env.addPost("author2")

	if _, err := env.engine.EnsureAssignment(ctx, first, "author1", ""); err != nil {
		t.Fatalf("EnsureAssignment error: %v", err)
	}
	if _, err := env.engine.EnsureAssignment(ctx, second, "author2", ""); err != nil {
		t.Fatalf("EnsureAssignment error: %v", err)
	}

	if err := env.engine.Advance(ctx, first, "editor", model.ActionApprove, AdvanceOptions{}); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if err := env.engine.Advance(ctx, second, "editor", model.ActionReject, AdvanceOptions{}); err != nil {
		t.Fatalf("Advance error: %v", err)
	}

	stats, err := env.engine.ApprovalStats(ctx, "editor")
	if err != nil {
		t.Fatalf("ApprovalStats error: %v", err)
	}
	if stats.Approved != 1 {
		t.Fatalf("expected 1 approval, got %d", stats.Approved)
	}
	if stats.Rejected != 1 {
		t.Fatalf("expected 1 rejection, got %d", stats.Rejected)
	}
	if stats.PendingReview != 0 {
		t.Fatalf("expected no pending reviews for editor, got %d", stats.PendingReview)
	}
}

func TestDashboardRows(t *testing.T) {
	workflow := twoStepWorkflow()
	env := newTestEnv(workflow)
	ctx := context.Background()

	postID := env.addPost("author1")
	if _, err := env.engine.EnsureAssignment(ctx, postID, "author1", ""); err != nil {
		t.Fatalf("EnsureAssignment error: %v", err)
	}

	rows, err := env.engine.Dashboard(ctx, "editor")
	if err != nil {
		t.Fatalf("Dashboard error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 dashboard row, got %d", len(rows))
	}
	if rows[0].PostTitle != "launch announcement" {
		t.Fatalf("unexpected post title %q", rows[0].PostTitle)
	}
	if rows[0].StepName != "editorial" {
		t.Fatalf("unexpected step name %q", rows[0].StepName)
	}
}

func TestHistoryFilterByActor(t *testing.T) {
	workflow := twoStepWorkflow()
	env := newTestEnv(workflow)
	ctx := context.Background()

	postID := env.addPost("author1")
	env.directory.members["role/legal"] = []string{"lawyer1", "lawyer2"}
	if _, err := env.engine.EnsureAssignment(ctx, postID, "author1", ""); err != nil {
		t.Fatalf("EnsureAssignment error: %v", err)
	}
	if err := env.engine.Advance(ctx, postID, "editor", model.ActionApprove, AdvanceOptions{}); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if err := env.engine.Advance(ctx, postID, "lawyer1", model.ActionApprove, AdvanceOptions{}); err != nil {
		t.Fatalf("Advance error: %v", err)
	}

	entries, err := env.engine.History(ctx, "editor", 0, 0)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry for editor, got %d", len(entries))
	}
	if entries[0].ActorID != "editor" {
		t.Fatalf("expected editor entry, got %s", entries[0].ActorID)
	}

	all, err := env.engine.History(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries total, got %d", len(all))
	}
}
