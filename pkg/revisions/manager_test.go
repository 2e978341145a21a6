package revisions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/model"
	"github.com/modgate/modgate/pkg/store"
)

type fakeRevisions struct {
	rows []*model.Revision
}

func (f *fakeRevisions) Create(_ context.Context, revision *model.Revision) error {
	clone := *revision
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	f.rows = append(f.rows, &clone)
	return nil
}

func (f *fakeRevisions) GetByID(_ context.Context, id uuid.UUID) (*model.Revision, error) {
	for _, revision := range f.rows {
		if revision.ID == id {
			clone := *revision
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRevisions) ListByPostID(_ context.Context, postID uuid.UUID) ([]model.Revision, error) {
	var result []model.Revision
	for _, revision := range f.rows {
		if revision.PostID == postID {
			result = append(result, *revision)
		}
	}
	return result, nil
}

type fakePosts struct {
	rows map[uuid.UUID]*model.Post
}

func (f *fakePosts) GetByID(_ context.Context, id uuid.UUID) (*model.Post, error) {
	post, ok := f.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *post
	return &clone, nil
}

func (f *fakePosts) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	post, ok := f.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "content":
			post.Content = value.(string)
		case "media_urls":
			post.MediaURLs = value.(pq.StringArray)
		case "scheduled_at":
			post.ScheduledAt = value.(*time.Time)
		}
	}
	return nil
}

func newTestManager() (*Manager, *fakeRevisions, *fakePosts, uuid.UUID) {
	revisions := &fakeRevisions{}
	posts := &fakePosts{rows: map[uuid.UUID]*model.Post{}}

	postID := uuid.New()
	posts.rows[postID] = &model.Post{
		ID:        postID,
		AuthorID:  "author1",
		Title:     "launch announcement",
		Content:   "original content",
		MediaURLs: pq.StringArray{"https://cdn.example/one.png"},
		Status:    model.PostDraft,
	}

	return NewManager(revisions, posts, zap.NewNop()), revisions, posts, postID
}

func strptr(s string) *string { return &s }

func TestRecordAppendsRevision(t *testing.T) {
	manager, fake, _, postID := newTestManager()

	revision, err := manager.Record(context.Background(), postID, "author1", model.RevisionSnapshot{
		Content: strptr("v2 content"),
	}, nil, "edit")
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}

	if len(fake.rows) != 1 {
		t.Fatalf("expected 1 revision, got %d", len(fake.rows))
	}
	if revision.Reason != "edit" {
		t.Fatalf("unexpected reason %q", revision.Reason)
	}
}

func TestRestoreMissingRevision(t *testing.T) {
	manager, fake, posts, postID := newTestManager()

	_, err := manager.Restore(context.Background(), postID, uuid.New(), "author1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// no mutation, no new revision
	if len(fake.rows) != 0 {
		t.Fatalf("expected no revisions written, got %d", len(fake.rows))
	}
	post, _ := posts.GetByID(context.Background(), postID)
	if post.Content != "original content" {
		t.Fatalf("expected post untouched, got %q", post.Content)
	}
}

func TestRestoreAppliesOnlySnapshotFields(t *testing.T) {
	manager, fake, posts, postID := newTestManager()

	revision, err := manager.Record(context.Background(), postID, "author1", model.RevisionSnapshot{
		Content: strptr("X"),
	}, nil, "edit")
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}

	restored, err := manager.Restore(context.Background(), postID, revision.ID, "editor")
	if err != nil {
		t.Fatalf("Restore error: %v", err)
	}

	post, _ := posts.GetByID(context.Background(), postID)
	if post.Content != "X" {
		t.Fatalf("expected content restored to X, got %q", post.Content)
	}
	// fields absent from the snapshot are left as-is
	if len(post.MediaURLs) != 1 || post.MediaURLs[0] != "https://cdn.example/one.png" {
		t.Fatalf("expected media urls untouched, got %v", post.MediaURLs)
	}

	if len(fake.rows) != 2 {
		t.Fatalf("expected restore to append a new revision, got %d rows", len(fake.rows))
	}
	if restored.Reason != model.RevisionReasonRestored {
		t.Fatalf("expected reason %q, got %q", model.RevisionReasonRestored, restored.Reason)
	}
	if restored.Metadata["restored_from"] != revision.ID.String() {
		t.Fatalf("expected restored_from %s, got %v", revision.ID, restored.Metadata["restored_from"])
	}
}

func TestRestoreRejectsForeignRevision(t *testing.T) {
	manager, _, posts, postID := newTestManager()

	otherPost := uuid.New()
	posts.rows[otherPost] = &model.Post{ID: otherPost, AuthorID: "author2", Title: "other"}

	revision, err := manager.Record(context.Background(), otherPost, "author2", model.RevisionSnapshot{
		Content: strptr("other content"),
	}, nil, "edit")
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}

	_, err = manager.Restore(context.Background(), postID, revision.ID, "editor")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign revision, got %v", err)
	}
}

func TestListRevisions(t *testing.T) {
	manager, _, _, postID := newTestManager()

	for _, content := range []string{"v1", "v2", "v3"} {
		if _, err := manager.Record(context.Background(), postID, "author1", model.RevisionSnapshot{
			Content: strptr(content),
		}, nil, "edit"); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	revisions, err := manager.List(context.Background(), postID)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(revisions) != 3 {
		t.Fatalf("expected 3 revisions, got %d", len(revisions))
	}
}
