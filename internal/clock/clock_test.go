package clock

import (
	"testing"
	"time"
)

func TestManualAdvance(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManual(start)
	m.Advance(121 * time.Second)

	if got, want := m.Now(), start.Add(121*time.Second); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFixedIsUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*3600)
	c := NewFixed(time.Date(2025, 1, 1, 15, 0, 0, 0, loc))
	if c.Now().Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", c.Now().Location())
	}
}
