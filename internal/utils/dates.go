package utils

import (
	"strings"
	"time"
)

// reservationLayouts are tried in order when parsing the reservation date
// text supplied by callers.  Automation workflows send wildly inconsistent
// date forms, so the parser is deliberately lenient; layouts without a time
// component produce midnight in the supplied location.
var reservationLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"January 2, 2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseReservationDate normalizes free-text reservation date input to a
// timestamp.  The second return value reports whether parsing succeeded;
// on failure the current time in loc is returned and the caller is
// expected to log the fallback rather than fail the request (the primary
// caller is an unattended workflow that must not lose a guarantee over a
// date format).
func ParseReservationDate(raw string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Now().In(loc), false
	}
	for _, layout := range reservationLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return t, true
		}
	}
	return time.Now().In(loc), false
}

// IsWeekendReservation reports whether a reservation falls on a day the
// weekend_only applicability rule covers: Friday, Saturday or Sunday.
func IsWeekendReservation(t time.Time) bool {
	switch t.Weekday() {
	case time.Friday, time.Saturday, time.Sunday:
		return true
	}
	return false
}
