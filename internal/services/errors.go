package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUserAlreadyExists is returned when the email or OAuth id is taken.
	ErrUserAlreadyExists = errors.New("user already exists")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrClusterNotFound    = errors.New("cluster not found")

	// ErrUserGone means a valid session refers to a deleted user.
	ErrUserGone = errors.New("session user no longer exists")

	// ErrStorageUnavailable is returned when no object storage backend is
	// configured.
	ErrStorageUnavailable = errors.New("object storage is not configured")
)

// ValidationError carries a message that is safe to show to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// QuotaExceededError is returned when a user already holds the maximum
// number of clusters allowed by their tier.
type QuotaExceededError struct {
	Tier  string
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("Cluster limit reached for %s tier (%d clusters)", e.Tier, e.Limit)
}
