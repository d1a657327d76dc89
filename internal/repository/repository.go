package repository

import (
	"database/sql"

	"github.com/billcycle/billcycle/internal/cache"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/logger"
	"github.com/billcycle/billcycle/internal/postgres"
)

// Params holds the shared dependencies of all repositories
type Params struct {
	DB     postgres.IClient
	Logger *logger.Logger
	Cache  cache.Cache
}

// notFound converts a sql.ErrNoRows into a domain not-found error, leaving
// other errors marked as database failures.
func notFound(err error, entity, id string) error {
	if ierr.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHintf("%s with ID %s was not found", entity, id).
			WithReportableDetails(map[string]any{
				"entity": entity,
				"id":     id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return ierr.WithError(err).
		WithHintf("Failed to query %s", entity).
		Mark(ierr.ErrDatabase)
}

func dbError(err error, hint string) error {
	return ierr.WithError(err).
		WithHint(hint).
		Mark(ierr.ErrDatabase)
}
