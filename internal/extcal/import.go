package extcal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/teambition/rrule-go"

	"bookcal/internal/config"
	appLog "bookcal/internal/log"
	"bookcal/internal/model"
)

const maxOccurrencesPerEvent = 1000

// Importer maintains the current set of blocking bookings derived from
// the configured feeds. Refresh is driven by the application's cron
// schedule; readers get a consistent snapshot in between.
type Importer struct {
	fetcher *Fetcher
	feeds   []config.FeedConfig
	loc     *time.Location
	window  func() model.TimeWindow

	mu     sync.RWMutex
	blocks []model.Booking
}

// NewImporter builds an Importer. window supplies the expansion range
// and is re-evaluated on every refresh, so the imported horizon rolls
// along with "now".
func NewImporter(fetcher *Fetcher, feeds []config.FeedConfig, loc *time.Location, window func() model.TimeWindow) *Importer {
	if loc == nil {
		loc = time.Local
	}
	return &Importer{
		fetcher: fetcher,
		feeds:   feeds,
		loc:     loc,
		window:  window,
	}
}

// Refresh fetches all feeds and rebuilds the block set. Per-feed
// failures keep that feed's previous absence; the other feeds still
// refresh.
func (im *Importer) Refresh(ctx context.Context) error {
	if len(im.feeds) == 0 {
		return nil
	}

	win := im.window()

	sources := make([]Source, 0, len(im.feeds))
	byID := make(map[string]config.FeedConfig, len(im.feeds))
	for _, feed := range im.feeds {
		sources = append(sources, Source{ID: feed.ID, URL: feed.URL})
		byID[feed.ID] = feed
	}

	results, errs := im.fetcher.FetchAll(ctx, sources)

	var blocks []model.Booking
	for _, res := range results {
		feed := byID[res.Source.ID]
		events, err := ParseFeed(res.Source, res.Body)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		blocks = append(blocks, expandFeed(feed, events, win, im.loc)...)
	}

	im.mu.Lock()
	im.blocks = blocks
	im.mu.Unlock()

	appLog.Info("feed refresh completed",
		"feeds", len(im.feeds),
		"blocks", len(blocks),
		"errors", len(errs),
	)
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// All returns the current snapshot of blocking bookings.
func (im *Importer) All() []model.Booking {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.blocks
}

// Blocking returns the blocks that fall on the given calendar day.
func (im *Importer) Blocking(date time.Time) []model.Booking {
	im.mu.RLock()
	defer im.mu.RUnlock()

	var out []model.Booking
	for _, b := range im.blocks {
		if b.Date.Year() == date.Year() && b.Date.Month() == date.Month() && b.Date.Day() == date.Day() {
			out = append(out, b)
		}
	}
	return out
}

// expandFeed turns feed events into per-day blocking bookings within
// win, expanding RRULE recurrences and splitting multi-day spans at
// midnight.
func expandFeed(feed config.FeedConfig, events []FeedEvent, win model.TimeWindow, loc *time.Location) []model.Booking {
	var out []model.Booking

	for _, ev := range events {
		if ev.Start.IsZero() {
			continue
		}

		var spans [][2]time.Time
		if ev.RawRRule != "" {
			spans = expandRecurring(ev, win)
		} else {
			spans = [][2]time.Time{{ev.Start, ev.End}}
		}

		for _, span := range spans {
			out = append(out, spanToBlocks(feed, ev, span[0], span[1], win, loc)...)
		}
	}

	return out
}

func expandRecurring(ev FeedEvent, win model.TimeWindow) [][2]time.Time {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("feed: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := win.Start.In(ev.Start.Location())
	rangeEnd := win.End.In(ev.Start.Location())

	starts := set.Between(rangeStart, rangeEnd, true)
	if len(starts) > maxOccurrencesPerEvent {
		appLog.Error("feed: truncated occurrences", errors.New("max occurrences reached"), "uid", ev.UID, "cap", maxOccurrencesPerEvent)
		starts = starts[:maxOccurrencesPerEvent]
	}

	dur := ev.End.Sub(ev.Start)
	spans := make([][2]time.Time, 0, len(starts))
	for _, s := range starts {
		spans = append(spans, [2]time.Time{s, s.Add(dur)})
	}
	return spans
}

// spanToBlocks converts one concrete occurrence into per-day bookings.
// A span crossing midnight becomes one block per day, clamped to the
// day's bounds; day-end clamps use a 24:00 clock so the half-open
// interval math stays exact.
func spanToBlocks(feed config.FeedConfig, ev FeedEvent, start, end time.Time, win model.TimeWindow, loc *time.Location) []model.Booking {
	start = start.In(loc)
	end = end.In(loc)

	if ev.AllDay {
		d := ev.Start.In(loc)
		start = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		end = start.Add(24 * time.Hour)
	}
	if !end.After(start) {
		return nil
	}

	owner := model.Owner{Name: ev.Summary, Company: feed.Name}
	if owner.Name == "" {
		owner.Name = "(busy)"
	}

	var out []model.Booking
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	for day.Before(end) {
		nextDay := day.AddDate(0, 0, 1)

		if !win.Contains(day) {
			day = nextDay
			continue
		}

		blockStart := model.Clock{}
		if start.After(day) {
			blockStart = model.Clock{Hour: start.Hour(), Minute: start.Minute(), Second: start.Second()}
		}
		// Default: the block runs to the end of the day.
		blockEnd := model.Clock{Hour: 24}
		if end.Before(nextDay) {
			blockEnd = model.Clock{Hour: end.Hour(), Minute: end.Minute(), Second: end.Second()}
		}

		out = append(out, model.Booking{
			ID:        feed.ID + "/" + ev.UID + "/" + day.Format("2006-01-02"),
			Date:      day,
			Start:     blockStart,
			End:       blockEnd,
			Resources: append([]string(nil), feed.Resources...),
			Owner:     owner,
			External:  true,
			Source:    feed.ID,
		})

		day = nextDay
	}
	return out
}
