package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
)

const pgUniqueViolation = "23505"

// mapError translates driver errors into the application taxonomy.
func mapError(op, resource, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound(resource, key)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperrors.Conflict(resource, "%s violates %s", key, pgErr.ConstraintName)
	}
	return apperrors.Storage(op, err)
}

func pageArgs(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return skip, limit
}
