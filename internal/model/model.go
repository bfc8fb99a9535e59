package model

import (
	"fmt"
	"time"
)

// Clock is a wall-clock time of day with second precision, detached
// from any calendar date or timezone.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// String renders the clock in HH:MM:SS form.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// Owner holds the opaque identity fields attached to a booking. The
// core never interprets these beyond echoing them in conflict details
// and API responses.
type Owner struct {
	Name        string
	Company     string
	Affiliation string
	Email       string
}

// Booking is a reservation of one or more resource kinds for a time
// interval on a single calendar day.
//
// Start and End carry the stored time-of-day representation, which is
// heterogeneous in practice: legacy rows surface TIME columns as
// strings ("09:30:00", "0 days 09:30:00") or durations, while new
// submissions carry Clock values. timeval.Normalize is the single
// place that folds all of these into a Clock; consumers skip rows it
// cannot interpret rather than failing the batch.
type Booking struct {
	ID string

	// Date is the booking's calendar day at midnight in the display
	// timezone. The time-of-day component is always zero.
	Date time.Time

	Start any
	End   any

	// Resources is the set of resource-kind tokens this booking claims.
	// Tokens are free text at this level; canonical matching against
	// the catalog happens in the layout engine and conflict detector.
	Resources []string

	Owner     Owner
	CreatedAt time.Time

	// External marks bookings imported from a subscribed calendar feed
	// rather than submitted through the API. External bookings block
	// conflicting submissions and render on the timeline, but are never
	// written back to the store.
	External bool

	// Source identifies the feed an external booking came from.
	Source string
}

// TimeWindow is a half-open display window [Start, End) over booking
// dates. Both bounds are midnight instants.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the window is non-empty and well ordered.
func (w TimeWindow) Valid() bool {
	return w.Start.Before(w.End)
}

// Contains reports whether date falls inside the window
// (Start inclusive, End exclusive).
func (w TimeWindow) Contains(date time.Time) bool {
	return !date.Before(w.Start) && date.Before(w.End)
}

// LayoutUnit is one visual bar on the timeline: a single (booking,
// resource kind) pair. Units are derived fresh on every layout pass
// and never mutated afterwards.
type LayoutUnit struct {
	BookingID string

	Date time.Time

	// StartHour and DurationHours are fractional hours from midnight;
	// DurationHours is floor-clamped so zero-length rows still render.
	StartHour     float64
	DurationHours float64

	Resource string

	// SlotIndex is the unit's 0-based position among all units sharing
	// its date.
	SlotIndex int

	// Offset shifts the unit left/right of its date, in fractions of a
	// day, so same-day units sit side by side centered on the date.
	Offset float64
}

// Fingerprint is the cheap cache key for a booking collection: row
// count plus the latest created_at instant. It deliberately cannot see
// an edit that leaves both unchanged; see timeline.Cache.
type Fingerprint struct {
	Rows         int64
	MaxCreatedAt time.Time
}
