package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bookcal/internal/catalog"
	"bookcal/internal/model"
)

type fakeStore struct {
	existing []model.Booking
	inserted []model.Booking
}

func (f *fakeStore) ListByDate(_ context.Context, _ time.Time) ([]model.Booking, error) {
	return f.existing, nil
}

func (f *fakeStore) Insert(_ context.Context, b model.Booking) (model.Booking, error) {
	b.ID = "fixed-id"
	b.CreatedAt = time.Date(2025, 5, 19, 12, 0, 0, 0, time.UTC)
	f.inserted = append(f.inserted, b)
	return b, nil
}

type fakeCache struct{ invalidations int }

func (f *fakeCache) Invalidate() { f.invalidations++ }

func clock(h, m int) model.Clock { return model.Clock{Hour: h, Minute: m} }

var testDay = time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)

func newService(st *fakeStore, cache *fakeCache) *Service {
	cat := catalog.FromEntries([]catalog.Entry{
		{Name: "iMAC", Rate: "250"},
		{Name: "Solder Station", Rate: "100"},
	})
	svc := New(st, nil, cat, cache, nil, Rules{
		MinAdvance:  18 * time.Hour,
		OfficeStart: clock(9, 0),
		OfficeEnd:   clock(18, 0),
	})
	// Fix "now" well before the test day so the advance rule passes by
	// default.
	svc.now = func() time.Time { return testDay.Add(-48 * time.Hour) }
	return svc
}

func validRequest() Request {
	return Request{
		Date:      testDay,
		Start:     clock(10, 0),
		End:       clock(12, 0),
		Resources: []string{"iMAC"},
		Owner: model.Owner{
			Name:        "Asha",
			Company:     "Acme",
			Affiliation: "Other",
			Email:       "asha@example.com",
		},
	}
}

func TestSubmitSuccess(t *testing.T) {
	st := &fakeStore{}
	cache := &fakeCache{}
	svc := newService(st, cache)

	receipt, err := svc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Booking.ID != "fixed-id" {
		t.Fatalf("booking = %+v", receipt.Booking)
	}
	if len(st.inserted) != 1 {
		t.Fatalf("inserted = %d", len(st.inserted))
	}
	if cache.invalidations != 1 {
		t.Fatalf("invalidations = %d", cache.invalidations)
	}
	// 2h * 250/h
	if !receipt.Quote.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("quote = %v", receipt.Quote)
	}
}

func TestSubmitConflict(t *testing.T) {
	st := &fakeStore{existing: []model.Booking{{
		Date:      testDay,
		Start:     "10:30:00",
		End:       "11:30:00",
		Resources: []string{"iMAC"},
		Owner:     model.Owner{Name: "Benoit", Company: "Globex"},
	}}}
	svc := newService(st, &fakeCache{})

	_, err := svc.Submit(context.Background(), validRequest())
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if ce.Conflict.OwnerName != "Benoit" {
		t.Fatalf("conflict owner = %q", ce.Conflict.OwnerName)
	}
	if len(st.inserted) != 0 {
		t.Fatal("conflicting submission must not insert")
	}
}

func TestSubmitValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing name", func(r *Request) { r.Owner.Name = " " }},
		{"missing resources", func(r *Request) { r.Resources = nil }},
		{"unknown resource only", func(r *Request) { r.Resources = []string{"Time Machine"} }},
		{"end before start", func(r *Request) { r.Start, r.End = r.End, r.Start }},
		{"zero length", func(r *Request) { r.End = r.Start }},
		{"outside office hours", func(r *Request) { r.Start = clock(7, 0) }},
		{"past office close", func(r *Request) { r.End = clock(20, 0) }},
		{"bad email", func(r *Request) { r.Owner.Email = "not-an-email" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := &fakeStore{}
			svc := newService(st, &fakeCache{})

			req := validRequest()
			tc.mutate(&req)

			_, err := svc.Submit(context.Background(), req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if len(st.inserted) != 0 {
				t.Fatal("invalid submission must not insert")
			}
		})
	}
}

func TestSubmitAdvanceNotice(t *testing.T) {
	st := &fakeStore{}
	svc := newService(st, &fakeCache{})
	// "now" eight hours before the requested 10:00 start: under the 18h rule.
	svc.now = func() time.Time { return testDay.Add(2 * time.Hour) }

	req := validRequest()

	_, err := svc.Submit(context.Background(), req)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError for short notice", err)
	}
}

func TestQuoteSumsResources(t *testing.T) {
	svc := newService(&fakeStore{}, &fakeCache{})

	// 1.5h of iMAC (250/h) + Solder Station (100/h) = 525.
	q := svc.Quote([]string{"iMAC", "solder station"}, clock(9, 0), clock(10, 30))
	if !q.Equal(decimal.NewFromInt(525)) {
		t.Fatalf("quote = %v", q)
	}

	if !svc.Quote([]string{"iMAC"}, clock(10, 0), clock(9, 0)).IsZero() {
		t.Fatal("inverted interval must quote zero")
	}
}
