// Package conflict decides whether a candidate booking interval
// overlaps an existing booking that shares at least one resource.
//
// The check is advisory only: it reads, it does not lock. Two
// concurrent submissions can both pass and both insert; closing that
// race requires a guarantee from the external store (a uniqueness
// constraint or serializable transaction), not from this package.
package conflict

import (
	"fmt"
	"sort"
	"strings"
	"time"

	appLog "bookcal/internal/log"
	"bookcal/internal/model"
	"bookcal/internal/timeval"
)

// Conflict describes the first existing booking found to overlap a
// candidate. It is an expected submission outcome, not an error.
type Conflict struct {
	// Resources are the resource tokens shared by both bookings,
	// sorted. Empty when the verdict did not depend on resources
	// (e.g. an inverted candidate interval).
	Resources []string

	OwnerName    string
	OwnerCompany string

	// ExistingStart / ExistingEnd are the stored interval of the
	// conflicting booking, as clocks.
	ExistingStart model.Clock
	ExistingEnd   model.Clock

	// Detail is a human-readable explanation suitable for direct
	// display to the submitting user.
	Detail string
}

// Check scans existing bookings for the first one that overlaps the
// candidate (date, start, end, resources) on a shared resource.
//
// An inverted candidate interval (end <= start) is itself a conflict,
// regardless of what exists. Bookings on other dates or with provably
// disjoint resource sets are skipped; if either resource set is empty
// the row is conservatively kept in play. Rows whose stored times fail
// normalization are skipped entirely, so malformed legacy data never
// blocks a new booking. Returns nil when nothing overlaps.
func Check(date time.Time, start, end model.Clock, resources []string, existing []model.Booking) *Conflict {
	newStart := timeval.Combine(date, start)
	newEnd := timeval.Combine(date, end)

	if !newEnd.After(newStart) {
		return &Conflict{Detail: "end time must be after start time"}
	}

	reqSet := tokenSet(resources)

	for _, b := range existing {
		if !sameDay(b.Date, date) {
			continue
		}

		existingSet := tokenSet(b.Resources)

		// No shared resource means no possible conflict, but only when
		// both sets are known. An empty set is treated as potentially
		// conflicting; upstream validation should have rejected it.
		if len(reqSet) > 0 && len(existingSet) > 0 && disjoint(reqSet, existingSet) {
			continue
		}

		existStartClock, err := timeval.Normalize(b.Start)
		if err != nil {
			appLog.Debug("conflict: skipping row with unparsable start", "booking_id", b.ID)
			continue
		}
		existEndClock, err := timeval.Normalize(b.End)
		if err != nil {
			appLog.Debug("conflict: skipping row with unparsable end", "booking_id", b.ID)
			continue
		}

		existStart := timeval.Combine(b.Date, existStartClock)
		existEnd := timeval.Combine(b.Date, existEndClock)

		// Half-open overlap: touching boundaries do not conflict.
		if newStart.Before(existEnd) && newEnd.After(existStart) {
			return buildConflict(b, reqSet, existingSet, existStartClock, existEndClock)
		}
	}

	return nil
}

func buildConflict(b model.Booking, reqSet, existingSet map[string]struct{}, start, end model.Clock) *Conflict {
	var shared []string
	switch {
	case len(reqSet) > 0 && len(existingSet) > 0:
		for tok := range existingSet {
			if _, ok := reqSet[tok]; ok {
				shared = append(shared, tok)
			}
		}
	case len(existingSet) > 0:
		for tok := range existingSet {
			shared = append(shared, tok)
		}
	}
	sort.Strings(shared)

	c := &Conflict{
		Resources:     shared,
		OwnerName:     b.Owner.Name,
		OwnerCompany:  b.Owner.Company,
		ExistingStart: start,
		ExistingEnd:   end,
	}
	c.Detail = fmt.Sprintf("existing booking for [%s] by %s (%s) from %s to %s",
		strings.Join(shared, ", "), b.Owner.Name, b.Owner.Company, start, end)
	return c
}

// tokenSet lowercases and trims tokens into a set, dropping blanks.
func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

func disjoint(a, b map[string]struct{}) bool {
	for tok := range a {
		if _, ok := b[tok]; ok {
			return false
		}
	}
	return true
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
