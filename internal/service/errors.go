package service

import (
	"errors"
	"strings"
)

// Error taxonomy of the reservation engine.  Handlers map these to HTTP
// statuses with errors.Is.
var (
	// ErrInvalidRequest is returned for malformed seat lists.  It is raised
	// before any transaction starts and is never retried.
	ErrInvalidRequest = errors.New("invalid request")

	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrSeatConflict          = errors.New("seat conflict")

	// ErrHoldNotConfirmable covers unknown, expired and already settled
	// holds.
	ErrHoldNotConfirmable = errors.New("hold expired or already settled")

	// ErrStorageFailure is returned once the retry budget for an
	// infrastructure error is exhausted.  No partial state survives it.
	ErrStorageFailure = errors.New("storage failure")

	ErrShowNotFound = errors.New("show not found")
	ErrHoldNotFound = errors.New("hold not found")
)

// SeatConflictError lists the requested seats that are already covered by
// an active hold.  It matches ErrSeatConflict.
type SeatConflictError struct {
	Seats []string
}

func (e *SeatConflictError) Error() string {
	return "seat conflict: " + strings.Join(e.Seats, ", ")
}

func (e *SeatConflictError) Is(target error) bool {
	return target == ErrSeatConflict
}

// isDomainError reports whether err is an expected outcome rather than an
// infrastructure failure.  Domain errors abort without retry.
func isDomainError(err error) bool {
	for _, target := range []error{
		ErrInvalidRequest,
		ErrInsufficientInventory,
		ErrSeatConflict,
		ErrHoldNotConfirmable,
		ErrShowNotFound,
		ErrHoldNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
