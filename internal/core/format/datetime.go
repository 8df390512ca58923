package format

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/relvacode/iso8601"
)

// LongDayHourLayout renders dates like "Jan 2, 2006 3:04 pm"
const LongDayHourLayout = "Jan 2, 2006 3:04 pm"

// InvalidDate is displayed for dates that could not be parsed
const InvalidDate = "Invalid date"

// ResolveLocation returns the display location of prefs. Timezone-unaware
// preferences always resolve to UTC, whatever their timezone name.
func ResolveLocation(prefs domain.TimePrefs) (*time.Location, error) {
	if !prefs.TimezoneAware || prefs.TimezoneName == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(prefs.TimezoneName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTimezone, prefs.TimezoneName)
	}
	return loc, nil
}

// Location is ResolveLocation falling back to UTC on unknown timezones
func Location(prefs domain.TimePrefs) *time.Location {
	loc, err := ResolveLocation(prefs)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DateTime formats t with LongDayHourLayout in the location of prefs
func DateTime(t time.Time, prefs domain.TimePrefs) string {
	return t.In(Location(prefs)).Format(LongDayHourLayout)
}

// ParseDate parses an ISO-8601 date. The boolean is false for empty or
// malformed input.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ISODate formats a parsed ISO-8601 string with LongDayHourLayout, or
// returns InvalidDate
func ISODate(s string, prefs domain.TimePrefs) string {
	t, ok := ParseDate(s)
	if !ok {
		return InvalidDate
	}
	return DateTime(t, prefs)
}
