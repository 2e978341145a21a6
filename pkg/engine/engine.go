package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/eventbus"
	"github.com/modgate/modgate/pkg/metrics"
	"github.com/modgate/modgate/pkg/model"
	"github.com/modgate/modgate/pkg/notify"
	"github.com/modgate/modgate/pkg/store"
)

// maxAdvanceRetries bounds the optimistic-lock retry loop. Each retry
// reloads the assignment, so a conflict only costs one extra read.
const maxAdvanceRetries = 3

type WorkflowStore interface {
	GetByID(ctx context.Context, id string) (*model.Workflow, error)
	ListActive(ctx context.Context) ([]model.Workflow, error)
}

type AssignmentStore interface {
	Create(ctx context.Context, assignment *model.Assignment) error
	GetActiveByPostID(ctx context.Context, postID uuid.UUID) (*model.Assignment, error)
	UpdateWithVersion(ctx context.Context, assignment *model.Assignment, expectedVersion int) error
	ListPendingForApprover(ctx context.Context, actorID string, roles, teams []string, postID *uuid.UUID) ([]model.Assignment, error)
}

type HistoryStore interface {
	Create(ctx context.Context, entry *model.HistoryEntry) error
	List(ctx context.Context, actorID string, limit, offset int) ([]model.HistoryEntry, error)
	CountByAction(ctx context.Context, actorID, action string) (int64, error)
}

type ContentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Post, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
}

// Directory expands role/team approver references into actors and
// back. Identity itself is external; actor ids arrive authenticated.
type Directory interface {
	GroupsFor(ctx context.Context, actorID string) (roles, teams []string, err error)
	MembersOf(ctx context.Context, kind model.MembershipKind, ref string) ([]string, error)
}

// TxStores bundles the stores a decision touches so they can share one
// transaction.
type TxStores struct {
	Assignments AssignmentStore
	History     HistoryStore
	Posts       ContentStore
}

// Transactor runs fn against transaction-bound stores; if fn returns
// an error every write inside it is rolled back.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(TxStores) error) error
}

// Engine owns every assignment state transition. All writes to an
// assignment row flow through the optimistic version check; nothing
// else mutates assignments.
type Engine struct {
	workflows   WorkflowStore
	assignments AssignmentStore
	history     HistoryStore
	posts       ContentStore
	directory   Directory
	dispatcher  notify.Dispatcher
	tx          Transactor
	bus         *eventbus.Bus
	cache       redis.UniversalClient
	logger      *zap.Logger
}

func New(
	workflows WorkflowStore,
	assignments AssignmentStore,
	history HistoryStore,
	posts ContentStore,
	directory Directory,
	dispatcher notify.Dispatcher,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		workflows:   workflows,
		assignments: assignments,
		history:     history,
		posts:       posts,
		directory:   directory,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// WithBus attaches the redis event bus; transitions are announced
// best-effort.
func (e *Engine) WithBus(bus *eventbus.Bus) *Engine {
	e.bus = bus
	return e
}

// WithCache attaches the dashboard cache client.
func (e *Engine) WithCache(cache redis.UniversalClient) *Engine {
	e.cache = cache
	return e
}

// WithTransactor makes each decision's assignment write, post update
// and history entry land atomically. Without one the writes run
// sequentially against the plain stores.
func (e *Engine) WithTransactor(tx Transactor) *Engine {
	e.tx = tx
	return e
}

func (e *Engine) inTransaction(ctx context.Context, fn func(TxStores) error) error {
	if e.tx != nil {
		return e.tx.InTransaction(ctx, fn)
	}
	return fn(TxStores{Assignments: e.assignments, History: e.history, Posts: e.posts})
}

// EnsureAssignment is idempotent: an existing non-terminal assignment
// for the post is returned unchanged. Otherwise the workflow is
// resolved (explicit id or default scope matching) and a fresh
// assignment is created at the first step. Terminal assignments are
// never reused; a resubmission lands here again and gets a new row.
func (e *Engine) EnsureAssignment(ctx context.Context, postID uuid.UUID, authorID, workflowID string) (*model.Assignment, error) {
	if authorID == "" {
		return nil, fmt.Errorf("%w: author id is required", store.ErrValidation)
	}

	existing, err := e.assignments.GetActiveByPostID(ctx, postID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var workflow *model.Workflow
	if workflowID != "" {
		workflow, err = e.workflows.GetByID(ctx, workflowID)
	} else {
		workflow, err = e.ResolveWorkflow(ctx, authorID)
	}
	if err != nil {
		return nil, err
	}

	first := workflow.FirstStep()
	if first == nil {
		return nil, fmt.Errorf("%w: workflow %s has no steps", store.ErrValidation, workflow.ID)
	}

	assignment := &model.Assignment{
		ID:            uuid.New(),
		PostID:        postID,
		WorkflowID:    workflow.ID,
		Workflow:      workflow,
		CurrentStepID: first.ID,
		Status:        model.AssignmentPending,
		StepHistory:   model.StepHistory{},
	}
	if err := e.assignments.Create(ctx, assignment); err != nil {
		// A concurrent submit won the race to the one-pending-per-post
		// index. Return its row; it already handled the side effects.
		if errors.Is(err, store.ErrConflict) {
			return e.assignments.GetActiveByPostID(ctx, postID)
		}
		return nil, err
	}

	if err := e.posts.UpdateFields(ctx, postID, map[string]interface{}{
		"status": model.PostInReview,
	}); err != nil {
		return nil, fmt.Errorf("mark post in review: %w", err)
	}

	e.notifyStepPending(ctx, assignment, first)
	e.publishTransition(ctx, assignment)

	return assignment, nil
}

// AdvanceOptions carries the optional free-text attached to a review
// decision.
type AdvanceOptions struct {
	Comment string
	Reason  string
}

// Advance applies one reviewer action to the post's live assignment.
// Approvals append to the step history and move the assignment forward
// once the step's approval threshold is met; reject/request_changes
// are terminal. Exactly one history entry is written per call. The
// read-modify-write on the step history runs under an optimistic
// version check and retries on conflict, so two concurrent approvals
// on the same step can never double-advance or lose an entry. The
// assignment write, the post status update and the history entry land
// in one transaction: either the decision fully took effect or none of
// it did, and a failed call can be retried.
func (e *Engine) Advance(ctx context.Context, postID uuid.UUID, actorID string, action model.ReviewAction, opts AdvanceOptions) error {
	timer := prometheus.NewTimer(metrics.AdvanceDuration)
	defer timer.ObserveDuration()

	if actorID == "" {
		return fmt.Errorf("%w: actor id is required", store.ErrValidation)
	}
	if !action.Valid() {
		return fmt.Errorf("%w: unknown action %q", store.ErrValidation, action)
	}

	var outcome advanceOutcome
	var lastErr error
	for attempt := 0; attempt < maxAdvanceRetries; attempt++ {
		assignment, err := e.assignments.GetActiveByPostID(ctx, postID)
		if err != nil {
			return err
		}

		lastErr = e.inTransaction(ctx, func(tx TxStores) error {
			var err error
			outcome, err = e.applyAction(ctx, tx, assignment, actorID, action)
			if err != nil {
				return err
			}
			entry := &model.HistoryEntry{
				ID:            uuid.New(),
				PostID:        postID,
				ActorID:       actorID,
				Action:        string(action),
				ActionDetails: model.NewActionDetails(opts.Comment, opts.Reason),
			}
			if err := tx.History.Create(ctx, entry); err != nil {
				return fmt.Errorf("record history: %w", err)
			}
			return nil
		})
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, store.ErrConflict) {
			return lastErr
		}
		metrics.VersionConflicts.Inc()
		e.logger.Debug("assignment version conflict, retrying",
			zap.String("post_id", postID.String()),
			zap.Int("attempt", attempt+1),
		)
	}
	if lastErr != nil {
		return fmt.Errorf("advance post %s: %w", postID, lastErr)
	}

	metrics.DecisionsTotal.WithLabelValues(string(action), string(outcome.assignment.Status)).Inc()

	e.notifyOutcome(ctx, outcome)
	e.publishTransition(ctx, outcome.assignment)

	return nil
}

type advanceOutcome struct {
	assignment *model.Assignment
	nextStep   *model.WorkflowStep
	completed  bool
}

func (e *Engine) applyAction(ctx context.Context, tx TxStores, assignment *model.Assignment, actorID string, action model.ReviewAction) (advanceOutcome, error) {
	if assignment.Workflow == nil {
		return advanceOutcome{}, fmt.Errorf("assignment %s: workflow not loaded", assignment.ID)
	}
	step := assignment.Workflow.StepByID(assignment.CurrentStepID)
	if step == nil {
		return advanceOutcome{}, fmt.Errorf("%w: assignment %s references unknown step %s",
			store.ErrNotFound, assignment.ID, assignment.CurrentStepID)
	}

	outcome := advanceOutcome{assignment: assignment}
	expectedVersion := assignment.Version

	switch action {
	case model.ActionApprove:
		assignment.StepHistory = append(assignment.StepHistory, model.StepHistoryEntry{
			StepID:    step.ID,
			Action:    model.ActionApprove,
			ActorID:   actorID,
			Timestamp: time.Now(),
		})

		count := assignment.StepHistory.ApproveCount(step.ID)
		if count >= step.MinApprovals || (step.IsOptional && count >= 1) {
			if next := assignment.Workflow.NextStep(step.Order); next != nil {
				assignment.CurrentStepID = next.ID
				outcome.nextStep = next
			} else {
				assignment.Status = model.AssignmentCompleted
				outcome.completed = true
			}
		}

	case model.ActionReject:
		assignment.Status = model.AssignmentRejected

	case model.ActionRequestChanges:
		assignment.Status = model.AssignmentChangesRequested
	}

	if err := tx.Assignments.UpdateWithVersion(ctx, assignment, expectedVersion); err != nil {
		return advanceOutcome{}, err
	}

	if postStatus, ok := postStatusFor(assignment.Status); ok {
		if err := tx.Posts.UpdateFields(ctx, assignment.PostID, map[string]interface{}{
			"status": postStatus,
		}); err != nil {
			return advanceOutcome{}, fmt.Errorf("reflect outcome on post: %w", err)
		}
	}

	return outcome, nil
}

func postStatusFor(status model.AssignmentStatus) (model.PostStatus, bool) {
	switch status {
	case model.AssignmentCompleted:
		return model.PostApproved, true
	case model.AssignmentRejected:
		return model.PostRejected, true
	case model.AssignmentChangesRequested:
		return model.PostNeedsRevision, true
	}
	return "", false
}

// notifyOutcome fans out best-effort notifications: the next step's
// approver set when review continues, the post author on a terminal
// outcome. Failures never reach the reviewer.
func (e *Engine) notifyOutcome(ctx context.Context, outcome advanceOutcome) {
	assignment := outcome.assignment

	if outcome.nextStep != nil {
		e.notifyStepPending(ctx, assignment, outcome.nextStep)
		return
	}

	if !assignment.Status.Terminal() {
		return
	}

	post, err := e.posts.GetByID(ctx, assignment.PostID)
	if err != nil {
		e.logger.Warn("failed to load post for notification",
			zap.String("post_id", assignment.PostID.String()), zap.Error(err))
		return
	}

	eventType := model.EventPostApproved
	switch assignment.Status {
	case model.AssignmentRejected:
		eventType = model.EventPostRejected
	case model.AssignmentChangesRequested:
		eventType = model.EventChangesRequested
	}

	if err := e.dispatcher.Enqueue(ctx, []string{post.AuthorID}, eventType, model.JSONB{
		"post_id":       assignment.PostID.String(),
		"assignment_id": assignment.ID.String(),
		"status":        string(assignment.Status),
	}); err != nil {
		e.logger.Warn("failed to enqueue outcome notification", zap.Error(err))
	}
}

func (e *Engine) notifyStepPending(ctx context.Context, assignment *model.Assignment, step *model.WorkflowStep) {
	recipients, err := e.approverSet(ctx, step)
	if err != nil {
		e.logger.Warn("failed to expand approver set",
			zap.String("step_id", step.ID.String()), zap.Error(err))
		return
	}

	if err := e.dispatcher.Enqueue(ctx, recipients, model.EventStepPending, model.JSONB{
		"post_id":       assignment.PostID.String(),
		"assignment_id": assignment.ID.String(),
		"step_id":       step.ID.String(),
		"step_name":     step.Name,
	}); err != nil {
		e.logger.Warn("failed to enqueue step notification", zap.Error(err))
	}
}

// approverSet resolves a step's approver reference to actor ids.
func (e *Engine) approverSet(ctx context.Context, step *model.WorkflowStep) ([]string, error) {
	switch step.ApproverType {
	case model.ApproverUser:
		return []string{step.ApproverRef}, nil
	case model.ApproverRole:
		return e.directory.MembersOf(ctx, model.MembershipRole, step.ApproverRef)
	case model.ApproverTeam:
		return e.directory.MembersOf(ctx, model.MembershipTeam, step.ApproverRef)
	}
	return nil, fmt.Errorf("unknown approver type %q", step.ApproverType)
}

func (e *Engine) publishTransition(ctx context.Context, assignment *model.Assignment) {
	if e.bus == nil {
		return
	}
	event, err := eventbus.NewEvent("assignment_status_changed", eventbus.AssignmentEvent{
		AssignmentID: assignment.ID.String(),
		PostID:       assignment.PostID.String(),
		Status:       string(assignment.Status),
		StepID:       assignment.CurrentStepID.String(),
	})
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, eventbus.ChannelAssignment, event); err != nil {
		e.logger.Debug("failed to publish assignment event", zap.Error(err))
	}
}
