package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/modgate/modgate/pkg/config"
	"github.com/modgate/modgate/pkg/model"
)

type Store struct {
	db *gorm.DB
}

func NewStore(cfg *config.DatabaseConfig) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	return &Store{db: db}, nil
}

func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(
		&model.Post{},
		&model.Membership{},
		&model.Workflow{},
		&model.WorkflowStep{},
		&model.Assignment{},
		&model.HistoryEntry{},
		&model.Comment{},
		&model.Revision{},
		&model.NotificationEvent{},
	); err != nil {
		return err
	}

	// AutoMigrate cannot express partial indexes. A post holds at most one
	// pending assignment, so concurrent submits race to this index and the
	// loser surfaces a duplicate-key error.
	return s.db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_pending_post ON assignments (post_id) WHERE status = 'pending'`,
	).Error
}
