package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/modgate/modgate/pkg/engine"
)

// InTransaction runs fn against repositories bound to a single
// database transaction. An error from fn rolls back every write made
// through those repositories.
func (s *Store) InTransaction(ctx context.Context, fn func(engine.TxStores) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(engine.TxStores{
			Assignments: NewAssignmentRepository(tx),
			History:     NewHistoryRepository(tx),
			Posts:       NewPostRepository(tx),
		})
	})
}
