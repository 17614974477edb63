package model

import "time"

// HoldStatus is the lifecycle state of a hold.  A hold starts PENDING and
// moves exactly once to CONFIRMED or FAILED; both are terminal.
type HoldStatus string

const (
	HoldStatusPending   HoldStatus = "PENDING"
	HoldStatusConfirmed HoldStatus = "CONFIRMED"
	HoldStatusFailed    HoldStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s HoldStatus) Terminal() bool {
	return s == HoldStatusConfirmed || s == HoldStatusFailed
}

// Contact is passed through from the booking request and never
// interpreted by the engine.
type Contact struct {
	Name  string `json:"name"`  // bookings.contact_name
	Email string `json:"email"` // bookings.contact_email
}

// Hold is a time-bounded claim on a set of seats for one show, also
// called a booking record.  Seats keeps the order in which the client
// requested them.  ExpiresAt only matters while the hold is PENDING and
// ConfirmedAt is set only once the hold is CONFIRMED.
//
// Fields:
//  ID               – opaque identifier (UUID).
//  ShowID           – show the seats belong to.
//  Seats            – seat identifiers claimed by the hold.
//  Status           – PENDING, CONFIRMED or FAILED.
//  TotalAmountCents – len(Seats) * show price at creation time.
//  Contact          – customer name and email.
//  CreatedAt        – creation timestamp.
//  ExpiresAt        – CreatedAt + hold duration.
//  ConfirmedAt      – confirmation timestamp (nil unless CONFIRMED).
type Hold struct {
	ID               string     `json:"id"`                     // bookings.id
	ShowID           uint64     `json:"show_id"`                // bookings.show_id
	Seats            []string   `json:"seats"`                  // booking_seats.seat_label
	Status           HoldStatus `json:"status"`                 // bookings.status
	TotalAmountCents uint64     `json:"total_amount_cents"`     // bookings.total_amount_cents
	Contact          Contact    `json:"contact"`                // bookings.contact_*
	CreatedAt        time.Time  `json:"created_at"`             // bookings.created_at
	ExpiresAt        time.Time  `json:"expires_at"`             // bookings.expires_at
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"` // bookings.confirmed_at (nullable)
}

// Active reports whether the hold counts against availability at now:
// it is CONFIRMED, or PENDING with an expiry strictly after now.
func (h Hold) Active(now time.Time) bool {
	switch h.Status {
	case HoldStatusConfirmed:
		return true
	case HoldStatusPending:
		return h.ExpiresAt.After(now)
	}
	return false
}

// Expired reports whether a PENDING hold has reached its expiry and is
// waiting to be swept.
func (h Hold) Expired(now time.Time) bool {
	return h.Status == HoldStatusPending && !h.ExpiresAt.After(now)
}

// HoldStats aggregates hold counts by status and the revenue of
// confirmed holds.
type HoldStats struct {
	Shows                 int    `json:"shows"`
	TotalSeats            uint64 `json:"total_seats"`
	Pending               int    `json:"pending"`
	Confirmed             int    `json:"confirmed"`
	Failed                int    `json:"failed"`
	ConfirmedRevenueCents uint64 `json:"confirmed_revenue_cents"`
}
