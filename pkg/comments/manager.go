package comments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/model"
	"github.com/modgate/modgate/pkg/notify"
	"github.com/modgate/modgate/pkg/store"
)

type Store interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Comment, error)
	ListByPostID(ctx context.Context, postID uuid.UUID) ([]model.Comment, error)
	UpdateResolution(ctx context.Context, id uuid.UUID, resolvedBy, resolution string, resolvedAt time.Time) error
}

// Manager owns the review discussion threads. Threading is resolved at
// creation time: ids are generated client-side, so a root comment's
// ThreadID equals its own id in the single insert and no later patch
// is needed.
type Manager struct {
	store      Store
	dispatcher notify.Dispatcher
	logger     *zap.Logger
}

func NewManager(store Store, dispatcher notify.Dispatcher, logger *zap.Logger) *Manager {
	return &Manager{store: store, dispatcher: dispatcher, logger: logger}
}

type CreateOptions struct {
	ParentID *uuid.UUID
	Type     model.CommentType
	Mentions []string
	StepID   *uuid.UUID
}

func (m *Manager) Create(ctx context.Context, postID uuid.UUID, actorID, body string, opts CreateOptions) (*model.Comment, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", store.ErrValidation)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: comment body is required", store.ErrValidation)
	}

	commentType := opts.Type
	if commentType == "" {
		commentType = model.CommentFeedback
	}

	id := uuid.New()
	threadID := id
	if opts.ParentID != nil {
		parent, err := m.store.GetByID(ctx, *opts.ParentID)
		if err != nil {
			return nil, fmt.Errorf("load parent comment: %w", err)
		}
		threadID = parent.ThreadID
		if threadID == uuid.Nil {
			// parent predates thread backfill; anchor the thread on it
			threadID = parent.ID
		}
	}

	comment := &model.Comment{
		ID:              id,
		PostID:          postID,
		ActorID:         actorID,
		Body:            body,
		Type:            commentType,
		ParentCommentID: opts.ParentID,
		ThreadID:        threadID,
		Mentions:        opts.Mentions,
		StepID:          opts.StepID,
	}
	if err := m.store.Create(ctx, comment); err != nil {
		return nil, err
	}

	if len(opts.Mentions) > 0 {
		if err := m.dispatcher.Enqueue(ctx, opts.Mentions, model.EventCommentMention, model.JSONB{
			"post_id":    postID.String(),
			"comment_id": comment.ID.String(),
			"actor_id":   actorID,
		}); err != nil {
			m.logger.Warn("failed to enqueue mention notification", zap.Error(err))
		}
	}

	return comment, nil
}

// Resolve marks a comment resolved. Idempotent: resolving an already
// resolved comment overwrites the resolution fields.
func (m *Manager) Resolve(ctx context.Context, commentID uuid.UUID, resolverID, resolutionText string) error {
	if resolverID == "" {
		return fmt.Errorf("%w: resolver id is required", store.ErrValidation)
	}
	return m.store.UpdateResolution(ctx, commentID, resolverID, resolutionText, time.Now())
}

func (m *Manager) ListByPost(ctx context.Context, postID uuid.UUID) ([]model.Comment, error) {
	return m.store.ListByPostID(ctx, postID)
}
