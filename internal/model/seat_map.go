package model

// SeatStatus is the projected availability of a single seat.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatBooked    SeatStatus = "BOOKED"
)

// SeatState describes one seat of a show's layout.
type SeatState struct {
	Seat       string     `json:"seat"`        // identifier, e.g. "A1"
	Row        string     `json:"row"`         // row label, e.g. "A"
	Number     uint32     `json:"number"`      // 1-based position within the row
	Status     SeatStatus `json:"status"`      // AVAILABLE or BOOKED
	VIP        bool       `json:"vip"`         // derived from the row position
	PriceCents uint32     `json:"price_cents"` // show price per seat
}

// SeatMap is the projection of every seat of a show.  Seats is in
// row-major order; Rows groups the same seats by row label.
type SeatMap struct {
	ShowID    uint64                 `json:"show_id"`
	Total     int                    `json:"total"`
	Available int                    `json:"available"`
	Seats     []SeatState            `json:"-"`
	Rows      map[string][]SeatState `json:"rows"`
	RowOrder  []string               `json:"row_order"`
}

// Status returns the projected status of seat and whether the seat
// exists in the layout.
func (m SeatMap) Status(seat string) (SeatStatus, bool) {
	for _, s := range m.Seats {
		if s.Seat == seat {
			return s.Status, true
		}
	}
	return "", false
}
