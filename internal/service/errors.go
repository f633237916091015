package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a tenant-scoped entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation wraps an input rejection; the message after the colon is user-facing.
	ErrValidation = errors.New("validation failed")

	// ErrSignatureInvalid is returned when a payment provider webhook fails verification.
	ErrSignatureInvalid = errors.New("webhook signature invalid")
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
