package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/feeledger/core"
)

const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// trapNoRowsErr turns sql.ErrNoRows into a core.NotFoundError.
func trapNoRowsErr(err error, entity, key string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return core.NewNotFoundError(entity, key)
	}
	return err
}

// reference names the row a foreign key constraint points at.
type reference struct {
	constraint string
	entity     string
	key        string
}

// trapPQErr classifies postgres errors: unique violations become conflicts, missing references
// become not found & contention becomes a retryable transaction failure.
// refs resolve a violated foreign key to the entity it references.
func trapPQErr(err error, conflictMsg string, refs ...reference) error {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return core.NewConflictError(conflictMsg)
	case pqForeignKeyViolation:
		for _, ref := range refs {
			if ref.constraint == pqErr.Constraint {
				return core.NewNotFoundError(ref.entity, ref.key)
			}
		}
		return core.NewNotFoundError("reference", pqErr.Constraint)
	case pqSerializationFailure, pqDeadlockDetected:
		return core.NewTransactionError(pqErr)
	}
	return err
}
