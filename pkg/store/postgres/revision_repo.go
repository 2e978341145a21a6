package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modgate/modgate/pkg/model"
	"github.com/modgate/modgate/pkg/store"
)

// RevisionRepository is append-only: revisions are never updated or
// deleted, restores write new rows.
type RevisionRepository struct {
	db *gorm.DB
}

func NewRevisionRepository(db *gorm.DB) *RevisionRepository {
	return &RevisionRepository{db: db}
}

func (r *RevisionRepository) Create(ctx context.Context, revision *model.Revision) error {
	return r.db.WithContext(ctx).Create(revision).Error
}

func (r *RevisionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Revision, error) {
	var revision model.Revision
	err := r.db.WithContext(ctx).First(&revision, "id = ?", id).Error
	if err != nil {
		return nil, store.Translate(err)
	}
	return &revision, nil
}

func (r *RevisionRepository) ListByPostID(ctx context.Context, postID uuid.UUID) ([]model.Revision, error) {
	var revisions []model.Revision
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&revisions).Error
	return revisions, err
}
