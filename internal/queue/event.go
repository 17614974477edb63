// Package queue defines the hold lifecycle events exchanged over the
// message broker, the RabbitMQ audit consumer, and the asynq task that
// drives the expiry sweep.
package queue

import "time"

// EventType names a hold state transition.
type EventType string

const (
	EventHoldCreated   EventType = "hold.created"
	EventHoldConfirmed EventType = "hold.confirmed"
	EventHoldCancelled EventType = "hold.cancelled"
	EventHoldExpired   EventType = "hold.expired"
)

// HoldEventsQueue is the durable RabbitMQ queue carrying HoldEvent
// messages.
const HoldEventsQueue = "hold.events"

// HoldEvent is published after a hold transition has committed.  It
// carries enough information for downstream consumers to log, notify or
// trigger analytics without querying the inventory store.
type HoldEvent struct {
	Type             EventType `json:"type"`
	HoldID           string    `json:"hold_id"`
	ShowID           uint64    `json:"show_id"`
	Seats            []string  `json:"seats"`
	Status           string    `json:"status"`
	TotalAmountCents uint64    `json:"total_amount_cents"`
	ContactName      string    `json:"contact_name"`
	ContactEmail     string    `json:"contact_email"`
	OccurredAt       time.Time `json:"occurred_at"`
}
