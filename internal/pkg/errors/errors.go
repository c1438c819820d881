package errors

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid request")
	ErrSchema         = errors.New("schema violation")
	ErrConfig         = errors.New("invalid configuration")
	ErrMerge          = errors.New("merge failed")
	ErrTooMany        = errors.New("too many requests")
	ErrUnavailable    = errors.New("unavailable")
	ErrInternal       = errors.New("internal")
)
