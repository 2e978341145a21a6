package escalate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/model"
)

type fakeAssignments struct {
	pending []model.Assignment
}

func (f *fakeAssignments) ListPending(_ context.Context) ([]model.Assignment, error) {
	return f.pending, nil
}

type fakeDirectory struct {
	members map[string][]string
}

func (f *fakeDirectory) MembersOf(_ context.Context, kind model.MembershipKind, ref string) ([]string, error) {
	return f.members[string(kind)+":"+ref], nil
}

type sentNotification struct {
	recipients []string
	eventType  string
	payload    model.JSONB
}

type recordingDispatcher struct {
	sent []sentNotification
}

func (d *recordingDispatcher) Enqueue(_ context.Context, recipientIDs []string, eventType string, payload model.JSONB) error {
	d.sent = append(d.sent, sentNotification{recipients: recipientIDs, eventType: eventType, payload: payload})
	return nil
}

func intPtr(v int) *int { return &v }

func overdueAssignment(waitedFor time.Duration, escalateAfterHours *int) model.Assignment {
	stepID := uuid.New()
	workflow := &model.Workflow{
		ID:   uuid.New(),
		Name: "editorial review",
		Steps: []model.WorkflowStep{
			{
				ID:                     stepID,
				Order:                  1,
				Name:                   "legal sign-off",
				ApproverType:           model.ApproverRole,
				ApproverRef:            "legal",
				MinApprovals:           1,
				AutoEscalateAfterHours: escalateAfterHours,
			},
		},
	}
	return model.Assignment{
		ID:            uuid.New(),
		PostID:        uuid.New(),
		WorkflowID:    workflow.ID,
		Workflow:      workflow,
		CurrentStepID: stepID,
		Status:        model.AssignmentPending,
		UpdatedAt:     time.Now().Add(-waitedFor),
	}
}

func TestScanEscalatesOverdueStep(t *testing.T) {
	assignments := &fakeAssignments{
		pending: []model.Assignment{overdueAssignment(3*time.Hour, intPtr(2))},
	}
	directory := &fakeDirectory{members: map[string][]string{
		"role:legal": {"alice", "bob"},
	}}
	dispatcher := &recordingDispatcher{}

	scanner := NewScanner(assignments, directory, dispatcher, nil, zap.NewNop(), time.Minute)
	scanner.Scan(context.Background())

	if len(dispatcher.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(dispatcher.sent))
	}
	got := dispatcher.sent[0]
	if got.eventType != model.EventSLAEscalation {
		t.Errorf("eventType = %q, want %q", got.eventType, model.EventSLAEscalation)
	}
	if len(got.recipients) != 2 {
		t.Errorf("recipients = %v, want alice and bob", got.recipients)
	}
	if got.payload["step_name"] != "legal sign-off" {
		t.Errorf("payload step_name = %v", got.payload["step_name"])
	}
}

func TestScanDoesNotRepeatEscalation(t *testing.T) {
	assignments := &fakeAssignments{
		pending: []model.Assignment{overdueAssignment(3*time.Hour, intPtr(2))},
	}
	directory := &fakeDirectory{members: map[string][]string{
		"role:legal": {"alice"},
	}}
	dispatcher := &recordingDispatcher{}

	scanner := NewScanner(assignments, directory, dispatcher, nil, zap.NewNop(), time.Minute)
	scanner.Scan(context.Background())
	scanner.Scan(context.Background())

	if len(dispatcher.sent) != 1 {
		t.Fatalf("sent = %d after two scans, want 1", len(dispatcher.sent))
	}
}

func TestScanSkipsStepWithinWindow(t *testing.T) {
	assignments := &fakeAssignments{
		pending: []model.Assignment{overdueAssignment(30*time.Minute, intPtr(2))},
	}
	dispatcher := &recordingDispatcher{}

	scanner := NewScanner(assignments, &fakeDirectory{}, dispatcher, nil, zap.NewNop(), time.Minute)
	scanner.Scan(context.Background())

	if len(dispatcher.sent) != 0 {
		t.Fatalf("sent = %d, want 0", len(dispatcher.sent))
	}
}

func TestScanSkipsStepWithoutEscalationWindow(t *testing.T) {
	assignments := &fakeAssignments{
		pending: []model.Assignment{overdueAssignment(100*time.Hour, nil)},
	}
	dispatcher := &recordingDispatcher{}

	scanner := NewScanner(assignments, &fakeDirectory{}, dispatcher, nil, zap.NewNop(), time.Minute)
	scanner.Scan(context.Background())

	if len(dispatcher.sent) != 0 {
		t.Fatalf("sent = %d, want 0", len(dispatcher.sent))
	}
}
