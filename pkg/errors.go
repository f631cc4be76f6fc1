package pkg

import (
	"errors"
	"fmt"
	"strings"

	cn "github.com/computor-org/computor/pkg/constant"
)

// EntityNotFoundError records an error indicating an entity was not found in any case that caused it.
// You can use it to representing a Database not found, cache not found or any other repository.
type EntityNotFoundError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

// NewEntityNotFoundError creates an instance of EntityNotFoundError.
func NewEntityNotFoundError(entityType string) EntityNotFoundError {
	return EntityNotFoundError{
		EntityType: entityType,
	}
}

// WrapEntityNotFoundError creates an instance of EntityNotFoundError wrapping the cause.
func WrapEntityNotFoundError(entityType string, err error) EntityNotFoundError {
	return EntityNotFoundError{
		EntityType: entityType,
		Err:        err,
	}
}

// Error implements the error interface.
func (e EntityNotFoundError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		if strings.TrimSpace(e.EntityType) != "" {
			return fmt.Sprintf("Entity %s not found", e.EntityType)
		}

		if e.Err != nil {
			return e.Err.Error()
		}

		return "entity not found"
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e EntityNotFoundError) Unwrap() error {
	return e.Err
}

// ValidationError records an error indicating inputs violated a contract-level invariant.
type ValidationError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("%s - %s", e.Code, e.Message)
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e ValidationError) Unwrap() error {
	return e.Err
}

// EntityConflictError records an error indicating an entity already exists in some repository,
// or a concurrent modification collided at the store level.
type EntityConflictError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

// Error implements the error interface.
func (e EntityConflictError) Error() string {
	if e.Err != nil && strings.TrimSpace(e.Message) == "" {
		return e.Err.Error()
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e EntityConflictError) Unwrap() error {
	return e.Err
}

// UnauthorizedError indicates an operation that couldn't be performed because there's no user authenticated.
type UnauthorizedError struct {
	EntityType string `json:"entityType,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
	Err        error  `json:"err,omitempty"`
}

func (e UnauthorizedError) Error() string {
	return e.Message
}

// ForbiddenError indicates an operation that couldn't be performed because the authenticated
// user has no sufficient privileges.
type ForbiddenError struct {
	EntityType string `json:"entityType,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
	Err        error  `json:"err,omitempty"`
}

func (e ForbiddenError) Error() string {
	return e.Message
}

// UnprocessableOperationError indicates an operation that couldn't be performed because it's invalid.
type UnprocessableOperationError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

func (e UnprocessableOperationError) Error() string {
	return e.Message
}

// StoreUnavailableError indicates the relational store could not serve the request in time.
// It is retryable from the caller's perspective.
type StoreUnavailableError struct {
	EntityType string `json:"entityType,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
	Err        error  `json:"err,omitempty"`
}

func (e StoreUnavailableError) Error() string {
	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e StoreUnavailableError) Unwrap() error {
	return e.Err
}

// RateLimitedError indicates a per-IP or per-identity throttle was exceeded.
type RateLimitedError struct {
	EntityType string `json:"entityType,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func (e RateLimitedError) Error() string {
	return e.Message
}

// InternalServerError indicates an unexpected failure surfaced with an opaque identifier.
type InternalServerError struct {
	EntityType string `json:"entityType,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
	Err        error  `json:"err,omitempty"`
}

func (e InternalServerError) Error() string {
	return e.Message
}

// ValidateBusinessError validates the error and returns the appropriate business error
// struct with code, title and message.
//
//nolint:cyclop
func ValidateBusinessError(err error, entityType string, args ...any) error {
	errorMap := map[error]error{
		cn.ErrEntityNotFound: EntityNotFoundError{
			EntityType: entityType,
			Code:       cn.ErrEntityNotFound.Error(),
			Title:      "Entity Not Found",
			Message:    fmt.Sprintf("No %s was found for the given ID.", entityType),
		},
		cn.ErrEntityConflict: EntityConflictError{
			EntityType: entityType,
			Code:       cn.ErrEntityConflict.Error(),
			Title:      "Entity Conflict",
			Message:    fmt.Sprintf("The %s already exists or was concurrently modified.", entityType),
		},
		cn.ErrDuplicateSlug: EntityConflictError{
			EntityType: entityType,
			Code:       cn.ErrDuplicateSlug.Error(),
			Title:      "Duplicate Identifier",
			Message:    fmt.Sprintf("A %s with the same identifier already exists.", entityType),
		},
		cn.ErrMissingFieldsInRequest: ValidationError{
			EntityType: entityType,
			Code:       cn.ErrMissingFieldsInRequest.Error(),
			Title:      "Missing Fields in Request",
			Message:    "Your request is missing one or more required fields.",
		},
		cn.ErrInvalidPathFormat: ValidationError{
			EntityType: entityType,
			Code:       cn.ErrInvalidPathFormat.Error(),
			Title:      "Invalid Path Format",
			Message:    "The provided path is not a valid dotted label path.",
		},
		cn.ErrInvalidGradeRange: ValidationError{
			EntityType: entityType,
			Code:       cn.ErrInvalidGradeRange.Error(),
			Title:      "Invalid Grade Range",
			Message:    "Grade must be within the range [0, 1].",
		},
		cn.ErrImmutableEntity: UnprocessableOperationError{
			EntityType: entityType,
			Code:       cn.ErrImmutableEntity.Error(),
			Title:      "Immutable Entity",
			Message:    fmt.Sprintf("The %s is immutable once created.", entityType),
		},
		cn.ErrActionNotPermitted: ForbiddenError{
			EntityType: entityType,
			Code:       cn.ErrActionNotPermitted.Error(),
			Title:      "Action Not Permitted",
			Message:    "You do not have the necessary role to perform this action.",
		},
		cn.ErrTokenMissing: UnauthorizedError{
			EntityType: entityType,
			Code:       cn.ErrTokenMissing.Error(),
			Title:      "Token Missing",
			Message:    "A valid token must be provided in the request header.",
		},
		cn.ErrInvalidToken: UnauthorizedError{
			EntityType: entityType,
			Code:       cn.ErrInvalidToken.Error(),
			Title:      "Invalid Token",
			Message:    "The provided token is expired, revoked or malformed.",
		},
		cn.ErrStoreUnavailable: StoreUnavailableError{
			EntityType: entityType,
			Code:       cn.ErrStoreUnavailable.Error(),
			Title:      "Service Temporarily Unavailable",
			Message:    "The data store could not serve the request in time. Please retry.",
		},
		cn.ErrRateLimited: RateLimitedError{
			EntityType: entityType,
			Code:       cn.ErrRateLimited.Error(),
			Title:      "Too Many Requests",
			Message:    "The request rate limit was exceeded. Please slow down.",
		},
		cn.ErrInternalServer: InternalServerError{
			EntityType: entityType,
			Code:       cn.ErrInternalServer.Error(),
			Title:      "Internal Server Error",
			Message:    "The server encountered an unexpected error. Please try again later.",
		},
	}

	if mapped, ok := errorMap[err]; ok {
		return mapped
	}

	return err
}

// IsNotFound reports whether err is (or wraps) an EntityNotFoundError.
func IsNotFound(err error) bool {
	var nf EntityNotFoundError
	return errors.As(err, &nf)
}
