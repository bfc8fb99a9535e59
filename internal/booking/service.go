// Package booking orchestrates a submission: field validation, the
// advisory conflict check, the persistence-sink insert, cache
// invalidation, and the fire-and-forget confirmation hook.
package booking

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bookcal/internal/catalog"
	"bookcal/internal/conflict"
	appLog "bookcal/internal/log"
	"bookcal/internal/model"
	"bookcal/internal/timeval"
)

const maxFieldLen = 100

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Store is the slice of the persistence layer the service needs: the
// same-date rows for the conflict scan, and the insert sink.
type Store interface {
	ListByDate(ctx context.Context, date time.Time) ([]model.Booking, error)
	Insert(ctx context.Context, b model.Booking) (model.Booking, error)
}

// Blocks supplies externally imported bookings (calendar feeds) that
// occupy resources without living in the store.
type Blocks interface {
	Blocking(date time.Time) []model.Booking
}

// Invalidator clears the layout cache after a successful insert.
type Invalidator interface {
	Invalidate()
}

// Notifier is told about confirmed bookings. It runs after the insert
// has already succeeded, on its own goroutine; its outcome never blocks
// or fails a submission.
type Notifier interface {
	BookingConfirmed(b model.Booking, quote decimal.Decimal)
}

// Rules are the submission validation rules.
type Rules struct {
	// MinAdvance is how far ahead of the requested start the submission
	// must arrive. Zero disables the check.
	MinAdvance time.Duration
	// OfficeStart / OfficeEnd bound allowed booking hours.
	OfficeStart model.Clock
	OfficeEnd   model.Clock
}

// Request is one booking submission.
type Request struct {
	Date      time.Time
	Start     model.Clock
	End       model.Clock
	Resources []string
	Owner     model.Owner
}

// Receipt is the successful outcome: the stored booking plus the
// price quote for the reserved resources.
type Receipt struct {
	Booking model.Booking
	Quote   decimal.Decimal
}

// ValidationError reports a rejected submission. Fields lists the
// offending inputs when the problem is missing data.
type ValidationError struct {
	Fields []string
	Msg    string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return "missing required fields: " + strings.Join(e.Fields, ", ")
	}
	return e.Msg
}

// ConflictError wraps a detector verdict so callers can distinguish it
// from faults (it maps to 409, not 500).
type ConflictError struct {
	Conflict *conflict.Conflict
}

func (e *ConflictError) Error() string {
	return "time conflict: " + e.Conflict.Detail
}

// Service wires the submission pipeline together.
type Service struct {
	store  Store
	blocks Blocks
	cat    *catalog.Catalog
	cache  Invalidator
	notify Notifier
	rules  Rules
	now    func() time.Time
}

// New builds a Service. blocks, cache and notify may be nil.
func New(store Store, blocks Blocks, cat *catalog.Catalog, cache Invalidator, notify Notifier, rules Rules) *Service {
	return &Service{
		store:  store,
		blocks: blocks,
		cat:    cat,
		cache:  cache,
		notify: notify,
		rules:  rules,
		now:    time.Now,
	}
}

// Submit validates the request, runs the conflict check against stored
// bookings plus external blocks, and inserts on a clean verdict.
//
// The check and the insert are two separate store calls; a concurrent
// submission can slip between them. See the store package for where
// that guarantee has to live.
func (s *Service) Submit(ctx context.Context, req Request) (Receipt, error) {
	if err := s.validate(req); err != nil {
		return Receipt{}, err
	}

	existing, err := s.store.ListByDate(ctx, req.Date)
	if err != nil {
		return Receipt{}, fmt.Errorf("booking: listing existing bookings: %w", err)
	}
	if s.blocks != nil {
		existing = append(existing, s.blocks.Blocking(req.Date)...)
	}

	if c := conflict.Check(req.Date, req.Start, req.End, req.Resources, existing); c != nil {
		appLog.Info("booking rejected on conflict",
			"date", req.Date.Format("2006-01-02"),
			"detail", c.Detail,
		)
		return Receipt{}, &ConflictError{Conflict: c}
	}

	stored, err := s.store.Insert(ctx, model.Booking{
		Date:      req.Date,
		Start:     req.Start,
		End:       req.End,
		Resources: s.cat.Match(req.Resources),
		Owner:     req.Owner,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("booking: inserting: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate()
	}

	receipt := Receipt{Booking: stored, Quote: s.Quote(req.Resources, req.Start, req.End)}

	if s.notify != nil {
		// The booking is already durable; notification failure is the
		// notifier's problem to log, not ours to surface.
		go s.notify.BookingConfirmed(stored, receipt.Quote)
	}

	return receipt, nil
}

// Quote prices the reservation: per-resource hourly rate times the
// interval duration, summed. Unknown resources contribute nothing.
func (s *Service) Quote(resources []string, start, end model.Clock) decimal.Decimal {
	hours := timeval.FractionalHours(end) - timeval.FractionalHours(start)
	if hours <= 0 {
		return decimal.Zero
	}
	dur := decimal.NewFromFloat(hours)

	total := decimal.Zero
	for _, name := range s.cat.Match(resources) {
		total = total.Add(s.cat.Rate(name).Mul(dur))
	}
	return total
}

func (s *Service) validate(req Request) error {
	var missing []string
	if req.Date.IsZero() {
		missing = append(missing, "date")
	}
	if len(req.Resources) == 0 {
		missing = append(missing, "resources")
	}
	if strings.TrimSpace(req.Owner.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.Owner.Company) == "" {
		missing = append(missing, "company")
	}
	if strings.TrimSpace(req.Owner.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}

	if len(s.cat.Match(req.Resources)) == 0 {
		return &ValidationError{Msg: "no requested resource matches the catalog"}
	}

	if s.rules.MinAdvance > 0 {
		requestedStart := timeval.Combine(req.Date, req.Start)
		if requestedStart.Before(s.now().Add(s.rules.MinAdvance)) {
			return &ValidationError{Msg: fmt.Sprintf(
				"bookings must be made at least %.0f hours in advance", s.rules.MinAdvance.Hours())}
		}
	}

	officeStart := timeval.FractionalHours(s.rules.OfficeStart)
	officeEnd := timeval.FractionalHours(s.rules.OfficeEnd)
	if officeEnd > officeStart {
		startH := timeval.FractionalHours(req.Start)
		endH := timeval.FractionalHours(req.End)
		if startH < officeStart || endH > officeEnd {
			return &ValidationError{Msg: fmt.Sprintf(
				"bookings are allowed only between %s and %s",
				s.rules.OfficeStart, s.rules.OfficeEnd)}
		}
	}

	if !timeval.Combine(req.Date, req.End).After(timeval.Combine(req.Date, req.Start)) {
		return &ValidationError{Msg: "end time must be after start time"}
	}

	if len(req.Owner.Email) > maxFieldLen {
		return &ValidationError{Msg: "email is too long (max 100 characters)"}
	}
	if !emailPattern.MatchString(req.Owner.Email) {
		return &ValidationError{Msg: "invalid email address"}
	}
	if len(req.Owner.Name) > maxFieldLen {
		return &ValidationError{Msg: "name is too long (max 100 characters)"}
	}
	if len(req.Owner.Company) > maxFieldLen {
		return &ValidationError{Msg: "company is too long (max 100 characters)"}
	}

	return nil
}
