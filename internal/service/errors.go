package service

import (
	"database/sql"
	"errors"
	"fmt"
)

// Error kinds returned by the services. Specific errors wrap one of these,
// so callers match with errors.Is. Every kind is detected before the first
// write of the unit of work.
var (
	// ErrNotFound means a tournament, match, board, team or player is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the action does not fit the current status,
	// e.g. reporting on a completed match.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict covers an unavailable board, a duplicate report,
	// insufficient occupancy and a winner who is not in the match.
	ErrConflict = errors.New("conflict")

	// ErrForbidden means the actor lacks the role or is not a participant.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput is a malformed request, e.g. an unknown format.
	ErrInvalidInput = errors.New("invalid input")
)

// notFound maps a missing row to ErrNotFound and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
