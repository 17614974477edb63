package model

import "time"

// Show represents a scheduled event whose seats can be held and booked.
// The catalog owns the descriptive fields; the reservation engine only
// reads TotalSeats and PriceCents and maintains AvailableSeats.
//
// Fields:
//  ID             – primary key identifier.
//  Title          – name of the movie or event.
//  Category       – free-form catalog category (Action, Sci-Fi, ...).
//  StartsAt       – when the show begins.
//  TotalSeats     – capacity of the show; fixes the seat layout.
//  AvailableSeats – seats not covered by an active hold.  Always
//                   between 0 and TotalSeats at committed states.
//  PriceCents     – price of a single seat in cents.
//  CreatedAt      – creation timestamp.
type Show struct {
	ID             uint64    `json:"id"`              // shows.id
	Title          string    `json:"title"`           // shows.title
	Category       string    `json:"category"`        // shows.category
	StartsAt       time.Time `json:"starts_at"`       // shows.starts_at
	TotalSeats     uint32    `json:"total_seats"`     // shows.total_seats
	AvailableSeats uint32    `json:"available_seats"` // shows.available_seats
	PriceCents     uint32    `json:"price_cents"`     // shows.price_cents
	CreatedAt      time.Time `json:"created_at"`      // shows.created_at
}
