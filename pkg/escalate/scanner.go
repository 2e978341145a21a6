package escalate

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/eventbus"
	"github.com/modgate/modgate/pkg/metrics"
	"github.com/modgate/modgate/pkg/model"
	"github.com/modgate/modgate/pkg/notify"
)

type AssignmentStore interface {
	ListPending(ctx context.Context) ([]model.Assignment, error)
}

type Directory interface {
	MembersOf(ctx context.Context, kind model.MembershipKind, ref string) ([]string, error)
}

// Scanner watches pending assignments whose current step has been
// waiting past its auto-escalation window and nudges the approver set.
// Purely advisory: it never touches assignment state; the engine alone
// mutates assignments.
type Scanner struct {
	assignments AssignmentStore
	directory   Directory
	dispatcher  notify.Dispatcher
	bus         *eventbus.Bus
	logger      *zap.Logger
	interval    time.Duration

	mu       sync.Mutex
	notified map[string]time.Time
}

func NewScanner(
	assignments AssignmentStore,
	directory Directory,
	dispatcher notify.Dispatcher,
	bus *eventbus.Bus,
	logger *zap.Logger,
	interval time.Duration,
) *Scanner {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Scanner{
		assignments: assignments,
		directory:   directory,
		dispatcher:  dispatcher,
		bus:         bus,
		logger:      logger,
		interval:    interval,
		notified:    make(map[string]time.Time),
	}
}

func (s *Scanner) Run(ctx context.Context) error {
	if s.bus != nil {
		events := s.bus.Subscribe(ctx, eventbus.ChannelAssignment)
		go s.handleEvents(ctx, events)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Scan(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("escalation scanner shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// handleEvents drops the dedupe marker when an assignment moves, so a
// step that becomes pending again after a long gap can escalate anew.
func (s *Scanner) handleEvents(ctx context.Context, events <-chan *eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Type != "assignment_status_changed" {
				continue
			}
			var assignmentEvent eventbus.AssignmentEvent
			if err := json.Unmarshal(event.Data, &assignmentEvent); err != nil {
				continue
			}
			s.mu.Lock()
			for key := range s.notified {
				if strings.HasPrefix(key, assignmentEvent.AssignmentID+"/") {
					delete(s.notified, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Scanner) Scan(ctx context.Context) {
	assignments, err := s.assignments.ListPending(ctx)
	if err != nil {
		s.logger.Error("failed to list pending assignments", zap.Error(err))
		return
	}

	now := time.Now()
	for i := range assignments {
		s.checkAssignment(ctx, &assignments[i], now)
	}
}

func (s *Scanner) checkAssignment(ctx context.Context, assignment *model.Assignment, now time.Time) {
	if assignment.Workflow == nil {
		return
	}
	step := assignment.Workflow.StepByID(assignment.CurrentStepID)
	if step == nil || step.AutoEscalateAfterHours == nil {
		return
	}

	deadline := assignment.UpdatedAt.Add(time.Duration(*step.AutoEscalateAfterHours) * time.Hour)
	if now.Before(deadline) {
		return
	}

	key := assignment.ID.String() + "/" + step.ID.String()
	s.mu.Lock()
	_, seen := s.notified[key]
	if !seen {
		s.notified[key] = now
	}
	s.mu.Unlock()
	if seen {
		return
	}

	recipients, err := s.approverSet(ctx, step)
	if err != nil {
		s.logger.Warn("failed to expand approver set for escalation",
			zap.String("step_id", step.ID.String()), zap.Error(err))
		return
	}

	if err := s.dispatcher.Enqueue(ctx, recipients, model.EventSLAEscalation, model.JSONB{
		"post_id":       assignment.PostID.String(),
		"assignment_id": assignment.ID.String(),
		"step_id":       step.ID.String(),
		"step_name":     step.Name,
		"waiting_hours": now.Sub(assignment.UpdatedAt).Hours(),
	}); err != nil {
		s.logger.Warn("failed to enqueue escalation", zap.Error(err))
		return
	}

	metrics.EscalationsTotal.Inc()
	s.logger.Info("sla escalation issued",
		zap.String("assignment_id", assignment.ID.String()),
		zap.String("step", step.Name),
	)
}

func (s *Scanner) approverSet(ctx context.Context, step *model.WorkflowStep) ([]string, error) {
	switch step.ApproverType {
	case model.ApproverUser:
		return []string{step.ApproverRef}, nil
	case model.ApproverRole:
		return s.directory.MembersOf(ctx, model.MembershipRole, step.ApproverRef)
	case model.ApproverTeam:
		return s.directory.MembersOf(ctx, model.MembershipTeam, step.ApproverRef)
	}
	return nil, nil
}
