package ics

import (
	"errors"
	"fmt"
	"time"
)

// Upstream date-time values carry no offset; the zone comes from the
// property's TZID parameter.
const dateTimeLayout = "20060102T150405"

// DefaultZone is assumed whenever a property has no zone parameter.
const DefaultZone = "Etc/UTC"

var ErrInvalidTime = errors.New("invalid date-time value")

// resolveZone looks a zone identifier up in the IANA database. Unknown
// or empty identifiers resolve to UTC rather than failing the event.
func resolveZone(tzid string) *time.Location {
	if tzid == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseDateTime interprets value as local wall-clock time in the zone
// named by tzid. Storing the zone, not an offset, keeps DST correct.
func ParseDateTime(value, tzid string) (time.Time, error) {
	t, err := time.ParseInLocation(dateTimeLayout, value, resolveZone(tzid))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	return t, nil
}

// FormatDateTime renders t in its own location, in the compact upstream
// format.
func FormatDateTime(t time.Time) string {
	return t.Format(dateTimeLayout)
}
