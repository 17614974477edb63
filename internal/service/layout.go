package service

import (
	"strconv"
	"strings"

	"github.com/iliyamo/cinebook-inventory/internal/model"
)

// SeatLayout generates the seat identifiers of a show from its capacity.
// Seats are laid out row-major, SeatsPerRow per row, rows labelled A..Z,
// AA, AB and so on.  The last row may be partial.  The first VIPRows rows
// are VIP.
type SeatLayout struct {
	SeatsPerRow int
	VIPRows     int
}

// DefaultLayout is ten seats per row with rows A and B flagged VIP.
func DefaultLayout() SeatLayout {
	return SeatLayout{SeatsPerRow: 10, VIPRows: 2}
}

func (l SeatLayout) perRow() int {
	if l.SeatsPerRow <= 0 {
		return 10
	}
	return l.SeatsPerRow
}

// Seats returns every seat of a show with total capacity in row-major
// order.  Status and price are left for the caller to fill in.
func (l SeatLayout) Seats(total int) []model.SeatState {
	if total <= 0 {
		return nil
	}
	per := l.perRow()
	out := make([]model.SeatState, 0, total)
	for i := 0; i < total; i++ {
		rowIdx := i / per
		row := rowLabel(rowIdx)
		num := i%per + 1
		out = append(out, model.SeatState{
			Seat:   row + strconv.Itoa(num),
			Row:    row,
			Number: uint32(num),
			VIP:    l.IsVIPRow(rowIdx),
		})
	}
	return out
}

// IsVIPRow reports whether the zero-based row index is a VIP row.
func (l SeatLayout) IsVIPRow(rowIdx int) bool {
	return rowIdx >= 0 && rowIdx < l.VIPRows
}

// Valid reports whether seat is generated by the layout for a show with
// total capacity.  seat must already be normalised.
func (l SeatLayout) Valid(seat string, total int) bool {
	row, num, ok := splitSeat(seat)
	if !ok {
		return false
	}
	rowIdx, ok := rowIndex(row)
	if !ok {
		return false
	}
	per := l.perRow()
	if num < 1 || num > per {
		return false
	}
	return rowIdx*per+num-1 < total
}

// NormalizeSeat trims and upper-cases a seat identifier.
func NormalizeSeat(seat string) string {
	return strings.ToUpper(strings.TrimSpace(seat))
}

// splitSeat separates the row letters from the seat number.  Numbers with
// a leading zero are rejected so every seat has one spelling.
func splitSeat(seat string) (string, int, bool) {
	i := 0
	for i < len(seat) && seat[i] >= 'A' && seat[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(seat) {
		return "", 0, false
	}
	num, err := strconv.Atoi(seat[i:])
	if err != nil || num <= 0 || strconv.Itoa(num) != seat[i:] {
		return "", 0, false
	}
	return seat[:i], num, true
}

// rowLabel converts a zero-based index to a row label: 0->A, 25->Z,
// 26->AA.
func rowLabel(i int) string {
	if i < 0 {
		return ""
	}
	var res []byte
	for {
		res = append(res, byte('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// rowIndex is the inverse of rowLabel.
func rowIndex(label string) (int, bool) {
	if label == "" || len(label) > 4 {
		return -1, false
	}
	n := 0
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c < 'A' || c > 'Z' {
			return -1, false
		}
		n = n*26 + int(c-'A'+1)
	}
	return n - 1, true
}
