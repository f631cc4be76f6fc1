package services

import (
	"errors"
	"strings"

	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/constant"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDatabaseItemNotFound is thrown when an informed item was not found.
var ErrDatabaseItemNotFound = errors.New("errDatabaseItemNotFound")

// ValidatePGError validate pgError and return business error
func ValidatePGError(pgErr *pgconn.PgError, entityType string) error {
	switch {
	// Unique violations surface as conflicts the caller may retry.
	case pgErr.Code == "23505":
		if strings.Contains(pgErr.ConstraintName, "path") || strings.Contains(pgErr.ConstraintName, "slug") {
			return pkg.ValidateBusinessError(constant.ErrDuplicateSlug, entityType)
		}

		return pkg.ValidateBusinessError(constant.ErrEntityConflict, entityType)

	// Foreign key violations mean a referenced entity does not exist.
	case pgErr.Code == "23503":
		return pkg.ValidateBusinessError(constant.ErrEntityNotFound, entityType)

	// Check violations are contract-level validation failures.
	case pgErr.Code == "23514":
		if strings.Contains(pgErr.ConstraintName, "grade") {
			return pkg.ValidateBusinessError(constant.ErrInvalidGradeRange, entityType)
		}

		return pkg.ValidateBusinessError(constant.ErrMissingFieldsInRequest, entityType)

	// Serialization failures and deadlocks are retryable store conditions.
	case pgErr.Code == "40001" || pgErr.Code == "40P01":
		return pkg.ValidateBusinessError(constant.ErrStoreUnavailable, entityType)

	default:
		return pgErr
	}
}
