package dbmongo

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"collegovibe/internal/common"
)

// MapError translates driver errors into the common taxonomy.
func MapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, common.ErrConflict)
	default:
		return common.Transient(op, err)
	}
}
