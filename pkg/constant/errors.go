package constant

import "errors"

var (
	ErrEntityNotFound         = errors.New("0001")
	ErrEntityConflict         = errors.New("0002")
	ErrDuplicateSlug          = errors.New("0003")
	ErrMissingFieldsInRequest = errors.New("0004")
	ErrInvalidPathFormat      = errors.New("0005")
	ErrInvalidGradeRange      = errors.New("0006")
	ErrImmutableEntity        = errors.New("0007")
	ErrActionNotPermitted     = errors.New("0008")
	ErrTokenMissing           = errors.New("0009")
	ErrInvalidToken           = errors.New("0010")
	ErrStoreUnavailable       = errors.New("0011")
	ErrRateLimited            = errors.New("0012")
	ErrInternalServer         = errors.New("0013")
)
