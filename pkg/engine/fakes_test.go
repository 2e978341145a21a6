package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modgate/modgate/pkg/model"
	"github.com/modgate/modgate/pkg/store"
)

type fakeWorkflows struct {
	workflows []model.Workflow
}

func (f *fakeWorkflows) GetByID(_ context.Context, id string) (*model.Workflow, error) {
	for i := range f.workflows {
		if f.workflows[i].ID.String() == id {
			return &f.workflows[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeWorkflows) ListActive(_ context.Context) ([]model.Workflow, error) {
	active := make([]model.Workflow, 0, len(f.workflows))
	for _, w := range f.workflows {
		if w.IsActive {
			active = append(active, w)
		}
	}
	return active, nil
}

// fakeAssignments mimics the conditional version update of the real
// repository: writes only land when the stored row still carries the
// expected version, and readers get their own copy of the row.
type fakeAssignments struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Assignment
}

func newFakeAssignments() *fakeAssignments {
	return &fakeAssignments{rows: make(map[uuid.UUID]*model.Assignment)}
}

func copyAssignment(a *model.Assignment) *model.Assignment {
	clone := *a
	clone.StepHistory = append(model.StepHistory{}, a.StepHistory...)
	return &clone
}

func (f *fakeAssignments) Create(_ context.Context, assignment *model.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Mirror the partial unique index: one pending assignment per post.
	for _, row := range f.rows {
		if row.PostID == assignment.PostID && row.Status == model.AssignmentPending {
			return store.ErrConflict
		}
	}
	f.rows[assignment.ID] = copyAssignment(assignment)
	return nil
}

func (f *fakeAssignments) GetActiveByPostID(_ context.Context, postID uuid.UUID) (*model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.PostID == postID && !row.Status.Terminal() {
			return copyAssignment(row), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeAssignments) UpdateWithVersion(_ context.Context, assignment *model.Assignment, expectedVersion int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.rows[assignment.ID]
	if !ok {
		return store.ErrNotFound
	}
	if current.Version != expectedVersion {
		return store.ErrConflict
	}

	updated := copyAssignment(assignment)
	updated.Version = expectedVersion + 1
	f.rows[assignment.ID] = updated
	assignment.Version = updated.Version
	return nil
}

func (f *fakeAssignments) ListPendingForApprover(_ context.Context, actorID string, roles, teams []string, postID *uuid.UUID) ([]model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []model.Assignment
	for _, row := range f.rows {
		if row.Status.Terminal() {
			continue
		}
		if postID != nil && row.PostID != *postID {
			continue
		}
		if row.Workflow == nil {
			continue
		}
		step := row.Workflow.StepByID(row.CurrentStepID)
		if step == nil {
			continue
		}
		if approverMatches(step, actorID, roles, teams) {
			result = append(result, *copyAssignment(row))
		}
	}
	return result, nil
}

func approverMatches(step *model.WorkflowStep, actorID string, roles, teams []string) bool {
	switch step.ApproverType {
	case model.ApproverUser:
		return step.ApproverRef == actorID
	case model.ApproverRole:
		return containsString(roles, step.ApproverRef)
	case model.ApproverTeam:
		return containsString(teams, step.ApproverRef)
	}
	return false
}

func (f *fakeAssignments) get(id uuid.UUID) *model.Assignment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyAssignment(f.rows[id])
}

func (f *fakeAssignments) pendingCount(postID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, row := range f.rows {
		if row.PostID == postID && row.Status == model.AssignmentPending {
			count++
		}
	}
	return count
}

func (f *fakeAssignments) snapshot() map[uuid.UUID]*model.Assignment {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := make(map[uuid.UUID]*model.Assignment, len(f.rows))
	for id, row := range f.rows {
		snap[id] = copyAssignment(row)
	}
	return snap
}

func (f *fakeAssignments) restore(snap map[uuid.UUID]*model.Assignment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = snap
}

// gatedAssignments holds every caller that read "no active assignment"
// at a barrier until all of them have, forcing the submit race through
// the same not-found window.
type gatedAssignments struct {
	*fakeAssignments
	gate *sync.WaitGroup
}

func (g *gatedAssignments) GetActiveByPostID(ctx context.Context, postID uuid.UUID) (*model.Assignment, error) {
	assignment, err := g.fakeAssignments.GetActiveByPostID(ctx, postID)
	if errors.Is(err, store.ErrNotFound) {
		g.gate.Done()
		g.gate.Wait()
	}
	return assignment, err
}

type fakeHistory struct {
	mu        sync.Mutex
	entries   []*model.HistoryEntry
	createErr error
}

func (f *fakeHistory) Create(_ context.Context, entry *model.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	clone := *entry
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	f.entries = append(f.entries, &clone)
	return nil
}

func (f *fakeHistory) List(_ context.Context, actorID string, limit, offset int) ([]model.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []model.HistoryEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		if actorID != "" && f.entries[i].ActorID != actorID {
			continue
		}
		result = append(result, *f.entries[i])
	}
	if offset > len(result) {
		offset = len(result)
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeHistory) CountByAction(_ context.Context, actorID, action string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for _, entry := range f.entries {
		if entry.ActorID == actorID && entry.Action == action {
			count++
		}
	}
	return count, nil
}

func (f *fakeHistory) all() []*model.HistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.HistoryEntry{}, f.entries...)
}

func (f *fakeHistory) snapshot() []*model.HistoryEntry {
	return f.all()
}

func (f *fakeHistory) restore(snap []*model.HistoryEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = snap
}

type fakePosts struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Post
}

func newFakePosts() *fakePosts {
	return &fakePosts{rows: make(map[uuid.UUID]*model.Post)}
}

func (f *fakePosts) GetByID(_ context.Context, id uuid.UUID) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *post
	return &clone, nil
}

func (f *fakePosts) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "status":
			post.Status = value.(model.PostStatus)
		case "content":
			post.Content = value.(string)
		case "media_urls":
			post.MediaURLs = value.([]string)
		case "scheduled_at":
			post.ScheduledAt = value.(*time.Time)
		}
	}
	return nil
}

func (f *fakePosts) snapshot() map[uuid.UUID]*model.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := make(map[uuid.UUID]*model.Post, len(f.rows))
	for id, post := range f.rows {
		clone := *post
		snap[id] = &clone
	}
	return snap
}

func (f *fakePosts) restore(snap map[uuid.UUID]*model.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = snap
}

// fakeTx mimics transactional rollback over the in-memory stores:
// their state is snapshotted before fn runs and restored when fn
// fails.
type fakeTx struct {
	assignments *fakeAssignments
	history     *fakeHistory
	posts       *fakePosts
}

func (f *fakeTx) InTransaction(_ context.Context, fn func(TxStores) error) error {
	assignSnap := f.assignments.snapshot()
	historySnap := f.history.snapshot()
	postSnap := f.posts.snapshot()

	err := fn(TxStores{Assignments: f.assignments, History: f.history, Posts: f.posts})
	if err != nil {
		f.assignments.restore(assignSnap)
		f.history.restore(historySnap)
		f.posts.restore(postSnap)
	}
	return err
}

type fakeDirectory struct {
	roles   map[string][]string // actor -> roles
	teams   map[string][]string // actor -> teams
	members map[string][]string // "kind/ref" -> actors
}

func (f *fakeDirectory) GroupsFor(_ context.Context, actorID string) ([]string, []string, error) {
	return f.roles[actorID], f.teams[actorID], nil
}

func (f *fakeDirectory) MembersOf(_ context.Context, kind model.MembershipKind, ref string) ([]string, error) {
	return f.members[string(kind)+"/"+ref], nil
}

type dispatched struct {
	recipients []string
	eventType  string
	payload    model.JSONB
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []dispatched
	err    error
}

func (f *fakeDispatcher) Enqueue(_ context.Context, recipientIDs []string, eventType string, payload model.JSONB) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, dispatched{recipients: recipientIDs, eventType: eventType, payload: payload})
	return nil
}

func (f *fakeDispatcher) byType(eventType string) []dispatched {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []dispatched
	for _, event := range f.events {
		if event.eventType == eventType {
			result = append(result, event)
		}
	}
	return result
}
