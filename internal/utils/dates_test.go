package utils

import (
	"testing"
	"time"
)

func TestParseReservationDate(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	cases := []struct {
		raw  string
		want time.Time
	}{
		{"2026-01-02T19:00:00Z", time.Date(2026, 1, 2, 19, 0, 0, 0, time.UTC)},
		{"2026-01-02T19:00:00", time.Date(2026, 1, 2, 19, 0, 0, 0, loc)},
		{"2026-01-02 19:00:00", time.Date(2026, 1, 2, 19, 0, 0, 0, loc)},
		{"2026-01-02 19:00", time.Date(2026, 1, 2, 19, 0, 0, 0, loc)},
		{"2026-01-02", time.Date(2026, 1, 2, 0, 0, 0, 0, loc)},
		{"01/02/2026 19:00", time.Date(2026, 1, 2, 19, 0, 0, 0, loc)},
		{"01/02/2026", time.Date(2026, 1, 2, 0, 0, 0, 0, loc)},
		{"January 2, 2026 19:00", time.Date(2026, 1, 2, 19, 0, 0, 0, loc)},
		{"January 2, 2026", time.Date(2026, 1, 2, 0, 0, 0, 0, loc)},
		{"Jan 2, 2026", time.Date(2026, 1, 2, 0, 0, 0, 0, loc)},
		{"  2026-01-02  ", time.Date(2026, 1, 2, 0, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		got, ok := ParseReservationDate(tc.raw, loc)
		if !ok {
			t.Errorf("ParseReservationDate(%q) reported failure", tc.raw)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseReservationDate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseReservationDateFallback(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "next friday", "2026-13-45"} {
		got, ok := ParseReservationDate(raw, time.UTC)
		if ok {
			t.Errorf("ParseReservationDate(%q) reported success", raw)
		}
		if time.Since(got) > time.Minute || time.Since(got) < -time.Minute {
			t.Errorf("ParseReservationDate(%q) fallback = %v, want approximately now", raw, got)
		}
	}
}

func TestParseReservationDateNilLocation(t *testing.T) {
	t.Parallel()
	got, ok := ParseReservationDate("2026-01-02", nil)
	if !ok {
		t.Fatal("parse failed with nil location")
	}
	if want := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestIsWeekendReservation(t *testing.T) {
	t.Parallel()
	weekend := []time.Time{
		time.Date(2026, 1, 2, 19, 0, 0, 0, time.UTC), // Friday
		time.Date(2026, 1, 3, 19, 0, 0, 0, time.UTC), // Saturday
		time.Date(2026, 1, 4, 19, 0, 0, 0, time.UTC), // Sunday
	}
	for _, d := range weekend {
		if !IsWeekendReservation(d) {
			t.Errorf("IsWeekendReservation(%v) = false, want true", d)
		}
	}
	weekday := []time.Time{
		time.Date(2026, 1, 5, 19, 0, 0, 0, time.UTC), // Monday
		time.Date(2026, 1, 6, 19, 0, 0, 0, time.UTC), // Tuesday
		time.Date(2026, 1, 8, 19, 0, 0, 0, time.UTC), // Thursday
	}
	for _, d := range weekday {
		if IsWeekendReservation(d) {
			t.Errorf("IsWeekendReservation(%v) = true, want false", d)
		}
	}
}
