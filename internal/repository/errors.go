// Package repository is the inventory store of the reservation engine.
// It keeps per-show seat counters and the log of hold records, and
// exposes them through the Store and Tx interfaces so the engine can run
// its check-then-write sequences atomically against MySQL or memory.
//
// The sentinel values below let the service layer distinguish missing
// records and guard violations from infrastructure failures.
package repository

import "errors"

// ErrShowNotFound is returned when a show lookup yields no rows.
var ErrShowNotFound = errors.New("show not found")

// ErrHoldNotFound is returned when a hold lookup yields no rows.
var ErrHoldNotFound = errors.New("hold not found")

// ErrCounterOutOfRange is returned when a counter update would move
// available_seats below zero or above total_seats.  The caller must
// abort the transaction.
var ErrCounterOutOfRange = errors.New("available seats out of range")

// ErrDuplicateHold is returned when a hold with the same ID, or the same
// seat twice, is inserted.
var ErrDuplicateHold = errors.New("duplicate hold")
