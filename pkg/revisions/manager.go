package revisions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/model"
	"github.com/modgate/modgate/pkg/store"
)

type Store interface {
	Create(ctx context.Context, revision *model.Revision) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Revision, error)
	ListByPostID(ctx context.Context, postID uuid.UUID) ([]model.Revision, error)
}

type ContentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Post, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
}

// Manager keeps the forward-only revision log. Revisions are never
// mutated; a restore applies the snapshot to the live post and appends
// a new revision pointing back at its source.
type Manager struct {
	revisions Store
	posts     ContentStore
	logger    *zap.Logger
}

func NewManager(revisions Store, posts ContentStore, logger *zap.Logger) *Manager {
	return &Manager{revisions: revisions, posts: posts, logger: logger}
}

func (m *Manager) Record(ctx context.Context, postID uuid.UUID, actorID string, snapshot model.RevisionSnapshot, metadata model.JSONB, reason string) (*model.Revision, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", store.ErrValidation)
	}

	revision := &model.Revision{
		ID:       uuid.New(),
		PostID:   postID,
		ActorID:  actorID,
		Snapshot: snapshot,
		Metadata: metadata,
		Reason:   reason,
	}
	if err := m.revisions.Create(ctx, revision); err != nil {
		return nil, err
	}
	return revision, nil
}

// Restore applies only the fields present in the snapshot onto the
// live post, leaving everything else untouched, then records the
// restore as a new revision with metadata.restored_from set. A missing
// revision fails with ErrNotFound before anything is written.
func (m *Manager) Restore(ctx context.Context, postID, revisionID uuid.UUID, actorID string) (*model.Revision, error) {
	revision, err := m.revisions.GetByID(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if revision.PostID != postID {
		return nil, fmt.Errorf("%w: revision %s does not belong to post %s", store.ErrNotFound, revisionID, postID)
	}

	fields := map[string]interface{}{}
	if revision.Snapshot.Content != nil {
		fields["content"] = *revision.Snapshot.Content
	}
	if revision.Snapshot.MediaURLs != nil {
		fields["media_urls"] = pq.StringArray(revision.Snapshot.MediaURLs)
	}
	if revision.Snapshot.ScheduledAt != nil {
		fields["scheduled_at"] = revision.Snapshot.ScheduledAt
	}

	if err := m.posts.UpdateFields(ctx, postID, fields); err != nil {
		return nil, fmt.Errorf("apply snapshot: %w", err)
	}

	return m.Record(ctx, postID, actorID, revision.Snapshot, model.JSONB{
		"restored_from": revisionID.String(),
	}, model.RevisionReasonRestored)
}

func (m *Manager) List(ctx context.Context, postID uuid.UUID) ([]model.Revision, error) {
	return m.revisions.ListByPostID(ctx, postID)
}
