// Package apperr holds the sentinel errors shared by the simulation packages.
// Callers wrap them with fmt.Errorf("%w: ...") and match with errors.Is.
package apperr

import "errors"

var (
	ErrInvalidState       = errors.New("invalid state")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrValidation         = errors.New("validation failed")
	ErrEventPending       = errors.New("event pending resolution")
	ErrNoPendingEvent     = errors.New("no pending event")
	ErrGameNotFound       = errors.New("game not found")
	ErrGameExists         = errors.New("game already exists")
)

// IsRejection reports whether err is an expected, user-correctable rejection
// rather than an internal failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientShares) ||
		errors.Is(err, ErrValidation)
}
