package service

import "testing"

func TestSeatLayoutSeats(t *testing.T) {
	t.Parallel()
	l := SeatLayout{SeatsPerRow: 10, VIPRows: 2}
	seats := l.Seats(25)
	if len(seats) != 25 {
		t.Fatalf("expected 25 seats, got %d", len(seats))
	}
	first, last := seats[0], seats[24]
	if first.Seat != "A1" || !first.VIP {
		t.Fatalf("expected VIP A1 first, got %+v", first)
	}
	if seats[10].Seat != "B1" || !seats[10].VIP {
		t.Fatalf("expected VIP B1 at index 10, got %+v", seats[10])
	}
	if last.Seat != "C5" || last.Row != "C" || last.Number != 5 || last.VIP {
		t.Fatalf("expected non-VIP C5 last, got %+v", last)
	}
}

func TestRowLabel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		idx   int
		label string
	}{
		{0, "A"}, {25, "Z"}, {26, "AA"}, {27, "AB"}, {51, "AZ"}, {52, "BA"}, {701, "ZZ"}, {702, "AAA"},
	}
	for _, tc := range tests {
		if got := rowLabel(tc.idx); got != tc.label {
			t.Fatalf("rowLabel(%d): expected %s, got %s", tc.idx, tc.label, got)
		}
		if got, ok := rowIndex(tc.label); !ok || got != tc.idx {
			t.Fatalf("rowIndex(%s): expected %d, got %d (ok=%v)", tc.label, tc.idx, got, ok)
		}
	}
}

func TestSeatLayoutValid(t *testing.T) {
	t.Parallel()
	l := DefaultLayout()
	tests := []struct {
		seat  string
		total int
		want  bool
	}{
		{"A1", 10, true},
		{"A10", 10, true},
		{"A11", 100, false},
		{"A0", 10, false},
		{"A01", 10, false},
		{"B1", 10, false},
		{"C5", 25, true},
		{"C6", 25, false},
		{"AA1", 270, true},
		{"AA1", 260, false},
		{"1A", 10, false},
		{"A", 10, false},
		{"a1", 10, false},
		{"", 10, false},
	}
	for _, tc := range tests {
		if got := l.Valid(tc.seat, tc.total); got != tc.want {
			t.Fatalf("Valid(%q, %d): expected %v, got %v", tc.seat, tc.total, tc.want, got)
		}
	}
}

func TestNormalizeSeat(t *testing.T) {
	t.Parallel()
	if got := NormalizeSeat("  b12 "); got != "B12" {
		t.Fatalf("expected B12, got %q", got)
	}
}
