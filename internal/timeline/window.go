package timeline

import (
	"errors"
	"time"

	"bookcal/internal/model"
)

// ErrInvalidWindow is returned when a window's start does not precede
// its end. This is a caller configuration error and propagates, unlike
// the row-scoped outcomes in layout.go.
var ErrInvalidWindow = errors.New("timeline: window start must precede end")

// WindowFrom derives the rolling display window from now: backDays
// before today's midnight to aheadDays after, half-open. "Now" drifts,
// so the window is re-derived on every call rather than computed once.
func WindowFrom(now time.Time, backDays, aheadDays int) model.TimeWindow {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return model.TimeWindow{
		Start: midnight.AddDate(0, 0, -backDays),
		End:   midnight.AddDate(0, 0, aheadDays),
	}
}

// FilterWindow keeps bookings whose date satisfies start <= date < end.
func FilterWindow(bookings []model.Booking, win model.TimeWindow) ([]model.Booking, error) {
	if !win.Valid() {
		return nil, ErrInvalidWindow
	}
	out := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if win.Contains(b.Date) {
			out = append(out, b)
		}
	}
	return out, nil
}
