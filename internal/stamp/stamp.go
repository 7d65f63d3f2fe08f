// Package stamp implements the canonical journal timestamp encoding:
// "YYYY-MM-DD HH:MM", minute precision, chosen so that lexicographic order
// over the canonical strings equals chronological order.
package stamp

import (
	"fmt"
	"time"

	"github.com/starford/dagaz/internal/apperr"
)

// Layout is the canonical timestamp layout in time.Format notation.
const Layout = "2006-01-02 15:04"

// Fields is the decomposed form of a canonical timestamp. Weekday is numbered
// in the configured origin basis; with origin 0 (the default) Monday is 0 and
// Sunday is 6.
type Fields struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	Weekday int
}

// Format renders t as a canonical string, truncating to minute precision.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Parse decodes a canonical string. Malformed input is an InvalidArgument.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("stamp: parse %q: %w", s, apperr.ErrInvalidArgument)
	}
	return t, nil
}

// Now returns the current wall-clock time truncated to minute precision.
func Now() time.Time {
	return time.Now().Truncate(time.Minute)
}

// Weekday numbers t's weekday with the given origin. Origin is itself given
// in the Monday=0 basis: origin 0 numbers Monday as zero, origin 6 numbers
// Sunday as zero.
func Weekday(t time.Time, origin int) int {
	monday := (int(t.Weekday()) + 6) % 7
	return ((monday-origin)%7 + 7) % 7
}

// Decompose splits t into its stored field columns.
func Decompose(t time.Time, origin int) Fields {
	return Fields{
		Year:    t.Year(),
		Month:   int(t.Month()),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Weekday: Weekday(t, origin),
	}
}

// DaysIn returns the number of days in the given month, accounting for leap
// years.
func DaysIn(year, month int) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay clamps day into the valid range for (year, month). Callers that
// assemble interval endpoints from independent fields use this to resolve
// combinations like February 31.
func ClampDay(year, month, day int) int {
	if day < 1 {
		return 1
	}
	if max := DaysIn(year, month); day > max {
		return max
	}
	return day
}

// ValidOrigin reports whether origin is a usable weekday origin.
func ValidOrigin(origin int) bool {
	return origin >= 0 && origin <= 6
}
