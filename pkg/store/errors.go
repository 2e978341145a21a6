package store

import (
	"errors"

	"gorm.io/gorm"
)

// Error taxonomy shared by the repositories and the services on top of
// them. Anything that is neither ErrNotFound, ErrValidation nor
// ErrConflict is treated as a persistence failure.
var (
	ErrNotFound   = errors.New("record not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("concurrent update conflict")
)

// Translate maps driver-level errors to the shared taxonomy at the
// repository edge so callers never import gorm to classify an error.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}
