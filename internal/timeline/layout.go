// Package timeline turns a booking collection into per-day timeline
// geometry: one visual unit per (booking, resource) pair, positioned so
// that same-day units sit side by side without overlapping. Geometry is
// expressed in abstract time-day units; turning it into pixels is the
// render sink's job.
package timeline

import (
	"time"

	"bookcal/internal/catalog"
	appLog "bookcal/internal/log"
	"bookcal/internal/model"
	"bookcal/internal/timeval"
)

// Reason classifies a layout outcome. Everything except ReasonOK is an
// outcome to present, not an error: the render sink is expected to show
// tailored messaging for each.
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonEmptyInput        Reason = "empty_input"
	ReasonAllRowsUnparsable Reason = "all_rows_unparsable"
	ReasonInvalidWindow     Reason = "invalid_window"
	ReasonOutOfWindow       Reason = "out_of_window"
	ReasonNoCatalogMatch    Reason = "no_catalog_match"
)

// Layout geometry constants, in fractions of a day unless noted.
const (
	// minVisibleHours floors a non-positive duration so the row still
	// renders after a data-entry error.
	minVisibleHours = 0.25

	// usableDayFraction bounds how much of a day's width the busiest
	// day's units may occupy in total.
	usableDayFraction = 0.60

	minUnitWidth = 0.0025
	maxUnitWidth = 0.35

	// slotSpacingFactor spreads adjacent slots slightly wider than the
	// unit itself so neighbors never touch.
	slotSpacingFactor = 1.08
)

// Result is the outcome of one layout pass.
type Result struct {
	Reason Reason
	Units  []model.LayoutUnit

	// UnitWidth is the computed per-unit width in day fractions, shared
	// by every unit in the pass.
	UnitWidth float64

	// Diagnostics.
	RowsPlotted      int
	InvalidDurations int

	// Window echoes the window the pass ran against; MinDate/MaxDate
	// describe the dates actually present in the input and are set when
	// Reason is ReasonOutOfWindow.
	Window  model.TimeWindow
	MinDate time.Time
	MaxDate time.Time
}

// plotRow is a booking after normalization, ready for exploding.
type plotRow struct {
	booking   model.Booking
	startHour float64
	durHours  float64
}

// Layout computes timeline geometry for bookings against the catalog
// within win. The pass is pure and deterministic: identical input
// yields byte-identical slot assignments and offsets, which the cache
// facade depends on.
func Layout(bookings []model.Booking, cat *catalog.Catalog, win model.TimeWindow) Result {
	res := Result{Window: win}

	if len(bookings) == 0 {
		res.Reason = ReasonEmptyInput
		return res
	}

	// Normalize every row; unparsable rows are dropped, not fatal.
	rows := make([]plotRow, 0, len(bookings))
	invalidDur := 0
	for _, b := range bookings {
		if b.Date.IsZero() {
			continue
		}
		startClock, err := timeval.Normalize(b.Start)
		if err != nil {
			appLog.Debug("layout: dropping row with unparsable start", "booking_id", b.ID)
			continue
		}
		endClock, err := timeval.Normalize(b.End)
		if err != nil {
			appLog.Debug("layout: dropping row with unparsable end", "booking_id", b.ID)
			continue
		}

		startH := timeval.FractionalHours(startClock)
		dur := timeval.FractionalHours(endClock) - startH
		if dur <= 0 {
			// Render anyway; a stored end-before-start is a data entry
			// error, not a reason to hide the booking.
			invalidDur++
			dur = minVisibleHours
		}

		rows = append(rows, plotRow{booking: b, startHour: startH, durHours: dur})
	}

	if len(rows) == 0 {
		res.Reason = ReasonAllRowsUnparsable
		return res
	}

	if !win.Valid() {
		res.Reason = ReasonInvalidWindow
		return res
	}

	// Track the full input's date spread for out-of-window diagnostics.
	minDate, maxDate := rows[0].booking.Date, rows[0].booking.Date
	for _, r := range rows[1:] {
		if r.booking.Date.Before(minDate) {
			minDate = r.booking.Date
		}
		if r.booking.Date.After(maxDate) {
			maxDate = r.booking.Date
		}
	}

	inWindow := rows[:0:0]
	for _, r := range rows {
		if win.Contains(r.booking.Date) {
			inWindow = append(inWindow, r)
		}
	}
	if len(inWindow) == 0 {
		res.Reason = ReasonOutOfWindow
		res.MinDate = minDate
		res.MaxDate = maxDate
		return res
	}

	// Explode each row into one unit per canonical resource match.
	// Input order is preserved, which keeps slot assignment stable.
	type protoUnit struct {
		row      plotRow
		resource string
	}
	var protos []protoUnit
	plotted := 0
	for _, r := range inWindow {
		matches := cat.Match(r.booking.Resources)
		if len(matches) == 0 {
			// Free-text-only rows are dropped from rendering but are not
			// an error in themselves.
			continue
		}
		plotted++
		for _, name := range matches {
			protos = append(protos, protoUnit{row: r, resource: name})
		}
	}
	if len(protos) == 0 {
		res.Reason = ReasonNoCatalogMatch
		return res
	}

	// First pass: per-day slot indices in input order.
	slotOf := make([]int, len(protos))
	perDay := make(map[time.Time]int)
	for i, p := range protos {
		d := p.row.booking.Date
		slotOf[i] = perDay[d]
		perDay[d]++
	}

	maxPerDay := 1
	for _, n := range perDay {
		if n > maxPerDay {
			maxPerDay = n
		}
	}

	// Unit width: the busiest day must fit inside the usable fraction.
	width := usableDayFraction / float64(maxPerDay)
	if width < minUnitWidth {
		width = minUnitWidth
	}
	if width > maxUnitWidth {
		width = maxUnitWidth
	}

	// Second pass: centered offsets around each date.
	units := make([]model.LayoutUnit, 0, len(protos))
	for i, p := range protos {
		count := perDay[p.row.booking.Date]
		center := float64(count-1) / 2.0
		offset := (float64(slotOf[i]) - center) * width * slotSpacingFactor

		units = append(units, model.LayoutUnit{
			BookingID:     p.row.booking.ID,
			Date:          p.row.booking.Date,
			StartHour:     p.row.startHour,
			DurationHours: p.row.durHours,
			Resource:      p.resource,
			SlotIndex:     slotOf[i],
			Offset:        offset,
		})
	}

	res.Reason = ReasonOK
	res.Units = units
	res.UnitWidth = width
	res.RowsPlotted = plotted
	res.InvalidDurations = invalidDur
	return res
}
