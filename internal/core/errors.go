package core

import "errors"

// Failure taxonomy for engine operations. Handlers map these to HTTP
// statuses; everything else is an internal error.
var (
	ErrInvalidURL    = errors.New("invalid original url")
	ErrInvalidAlias  = errors.New("alias must be 3-16 characters of letters, digits, '-' or '_'")
	ErrReservedAlias = errors.New("alias is reserved")
	ErrInvalidExpiry = errors.New("expiry must be in the future")
	ErrAliasTaken    = errors.New("alias already in use")
	ErrNotFound      = errors.New("short code not found")
	ErrExpired       = errors.New("link expired")
	ErrExhausted     = errors.New("could not allocate a unique code, retry later")
)
