package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/modgate/modgate/pkg/model"
)

const defaultHistoryLimit = 50

// HistoryRepository is append-only: the only write path is Create.
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Create(ctx context.Context, entry *model.HistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *HistoryRepository) List(ctx context.Context, actorID string, limit, offset int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := r.db.WithContext(ctx).Model(&model.HistoryEntry{})
	if actorID != "" {
		query = query.Where("actor_id = ?", actorID)
	}

	var entries []model.HistoryEntry
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}

// CountByAction tallies an actor's recorded actions, e.g. how many
// approvals or rejections they have issued.
func (r *HistoryRepository) CountByAction(ctx context.Context, actorID string, action string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.HistoryEntry{}).
		Where("actor_id = ? AND action = ?", actorID, action).
		Count(&count).Error
	return count, err
}
