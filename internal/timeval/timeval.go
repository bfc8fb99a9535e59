// Package timeval normalizes the heterogeneous time-of-day values that
// booking rows carry into a canonical model.Clock. Legacy TIME columns
// arrive as strings (sometimes with a "0 days" prefix) or durations
// depending on the driver; new submissions arrive as Clock values.
package timeval

import (
	"errors"
	"strings"
	"time"

	"bookcal/internal/model"
)

// ErrUnparsable is returned when no supported representation matched.
// Callers are expected to skip the offending row and continue; a single
// malformed legacy row must never abort a batch.
var ErrUnparsable = errors.New("timeval: unparsable time value")

// clockLayouts are tried in order for plain time-of-day strings.
var clockLayouts = []string{"15:04:05", "15:04"}

// datetimeLayouts are the last-resort general date-time forms; only the
// clock portion of a match is kept.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Normalize converts raw into a Clock. Supported inputs:
//
//   - model.Clock (returned as-is)
//   - time.Duration since midnight (wrapped modulo 24h)
//   - time.Time (its clock component)
//   - string: "HH:MM[:SS]", optionally prefixed with a day-count phrase
//     such as "0 days 09:30:00", or a general date-time as a fallback
//
// Anything else yields ErrUnparsable.
func Normalize(raw any) (model.Clock, error) {
	switch v := raw.(type) {
	case model.Clock:
		return v, nil
	case *model.Clock:
		if v == nil {
			return model.Clock{}, ErrUnparsable
		}
		return *v, nil
	case time.Duration:
		return fromDuration(v), nil
	case time.Time:
		return model.Clock{Hour: v.Hour(), Minute: v.Minute(), Second: v.Second()}, nil
	case string:
		return fromString(v)
	default:
		return model.Clock{}, ErrUnparsable
	}
}

func fromDuration(d time.Duration) model.Clock {
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	// TIME columns can exceed 24h when surfaced as durations.
	return model.Clock{Hour: h % 24, Minute: m, Second: s}
}

func fromString(s string) (model.Clock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.Clock{}, ErrUnparsable
	}

	// "0 days 09:30:00" and friends: keep only the final token.
	if strings.Contains(s, "day") {
		fields := strings.Fields(s)
		s = fields[len(fields)-1]
	}

	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}

	// Last resort: a general date-time parse.
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}

	return model.Clock{}, ErrUnparsable
}

// FractionalHours converts a clock to fractional hours from midnight.
// Both conflict math and layout geometry run on this form.
func FractionalHours(c model.Clock) float64 {
	return float64(c.Hour) + float64(c.Minute)/60.0 + float64(c.Second)/3600.0
}

// Combine anchors a clock onto a calendar day, producing an absolute
// instant in the day's location.
func Combine(date time.Time, c model.Clock) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		c.Hour, c.Minute, c.Second, 0, date.Location())
}
