package postgres

import (
	"database/sql"
	"errors"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/lib/pq"
)

// pq error code for unique constraint violations
const uniqueViolation = "23505"

var errNoRows = sql.ErrNoRows

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// wrapNotFound converts sql.ErrNoRows into the not-found taxonomy
func wrapNotFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.NewErrorf("%s not found", entity).
			WithHintf("No %s exists with the given identifier", entity).
			WithReportableDetails(map[string]any{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return ierr.WithError(err).
		WithHintf("Failed to query %s", entity).
		Mark(ierr.ErrDatabase)
}

func wrapWrite(err error, entity string) error {
	if isUniqueViolation(err) {
		return ierr.WithError(err).
			WithHintf("A %s with the same key already exists", entity).
			Mark(ierr.ErrAlreadyExists)
	}
	return ierr.WithError(err).
		WithHintf("Failed to write %s", entity).
		Mark(ierr.ErrDatabase)
}
