package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ErrTableMissing indicates the queried table does not exist. It is kept
// distinct from transient failures so the API can surface an "apply
// migrations" state instead of a generic error banner.
var ErrTableMissing = errors.New("relation does not exist")

// ErrNotFound indicates a row lookup matched nothing.
var ErrNotFound = errors.New("not found")

// undefined_table in the Postgres error code catalog
const pqUndefinedTable = pq.ErrorCode("42P01")

// ClassifyError maps raw database errors onto the package sentinels.
// Unrecognized errors pass through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUndefinedTable {
		return ErrTableMissing
	}
	return err
}

// IsTableMissing reports whether err indicates a missing relation.
func IsTableMissing(err error) bool {
	return errors.Is(ClassifyError(err), ErrTableMissing)
}

// IsNotFound reports whether err indicates an empty lookup.
func IsNotFound(err error) bool {
	return errors.Is(ClassifyError(err), ErrNotFound)
}
