// Package store persists bookings in postgres via gorm. It is the
// adapter between the legacy row shape (CSV resource column, TIME
// strings) and the core's model.Booking; the core itself never touches
// the database.
//
// The conflict detector's check-then-insert sequence is not wrapped in
// a transaction here. If duplicate concurrent submissions must be
// impossible, that guarantee belongs to the database (an exclusion
// constraint over (date, resource, time range)); the detector is
// advisory only.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	appLog "bookcal/internal/log"
	"bookcal/internal/model"
)

// BookingRecord is the persisted row shape. It mirrors the legacy
// schema: resources are a comma-joined string and times are stored in
// HH:MM:SS text.
type BookingRecord struct {
	ID          string    `gorm:"primaryKey;size:36"`
	BookingDate time.Time `gorm:"type:date;index"`
	StartTime   string    `gorm:"size:32"`
	EndTime     string    `gorm:"size:32"`
	// ResourceType is the comma-joined resource set; splitting and
	// joining happen only in this package.
	ResourceType string `gorm:"size:255"`
	PersonName   string `gorm:"size:100"`
	CompanyName  string `gorm:"size:100"`
	Affiliation  string `gorm:"size:100"`
	Email        string `gorm:"size:100"`
	CreatedAt    time.Time
}

func (BookingRecord) TableName() string { return "resource_bookings" }

// Store wraps the gorm handle.
type Store struct {
	db  *gorm.DB
	loc *time.Location
}

// Open connects to postgres and returns a Store. Dates read back from
// the database are re-anchored into loc, the display timezone.
func Open(dsn string, loc *time.Location) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	appLog.Info("store connected")
	return &Store{db: db, loc: loc}, nil
}

// Migrate creates or updates the bookings table.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&BookingRecord{})
}

// Insert persists a booking. A missing ID gets a fresh UUID; the
// booking (with ID and CreatedAt set) is returned.
func (s *Store) Insert(ctx context.Context, b model.Booking) (model.Booking, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().In(s.loc)
	}

	rec := toRecord(b)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return model.Booking{}, err
	}
	appLog.Info("booking inserted",
		"id", b.ID,
		"date", b.Date.Format("2006-01-02"),
		"resources", rec.ResourceType,
	)
	return b, nil
}

// ListByDate returns all bookings on the given calendar day, in
// insertion order. This is the conflict detector's input.
func (s *Store) ListByDate(ctx context.Context, date time.Time) ([]model.Booking, error) {
	var recs []BookingRecord
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.loc)
	err := s.db.WithContext(ctx).
		Where("booking_date = ?", day.Format("2006-01-02")).
		Order("created_at, id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return s.toModels(recs), nil
}

// ListAll returns every booking ordered by (created_at, id). The
// deterministic order matters: the layout engine assigns slots in
// input order, and the cache assumes identical input for an identical
// fingerprint.
func (s *Store) ListAll(ctx context.Context) ([]model.Booking, error) {
	var recs []BookingRecord
	err := s.db.WithContext(ctx).Order("created_at, id").Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return s.toModels(recs), nil
}

// Fingerprint returns the cheap cache key for the current collection:
// row count plus latest created_at.
func (s *Store) Fingerprint(ctx context.Context) (model.Fingerprint, error) {
	var fp model.Fingerprint

	row := s.db.WithContext(ctx).
		Model(&BookingRecord{}).
		Select("COUNT(*), COALESCE(MAX(created_at), 'epoch'::timestamptz)").
		Row()
	var maxCreated time.Time
	if err := row.Scan(&fp.Rows, &maxCreated); err != nil {
		return model.Fingerprint{}, err
	}
	fp.MaxCreatedAt = maxCreated.In(s.loc)
	return fp, nil
}

func (s *Store) toModels(recs []BookingRecord) []model.Booking {
	out := make([]model.Booking, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.toModel(rec))
	}
	return out
}

func (s *Store) toModel(rec BookingRecord) model.Booking {
	d := rec.BookingDate
	return model.Booking{
		ID:   rec.ID,
		Date: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc),
		// Times stay in their stored form; timeval.Normalize is applied
		// by whichever consumer needs clocks, and rows it cannot parse
		// are skipped there rather than dropped here.
		Start:     rec.StartTime,
		End:       rec.EndTime,
		Resources: SplitResources(rec.ResourceType),
		Owner: model.Owner{
			Name:        rec.PersonName,
			Company:     rec.CompanyName,
			Affiliation: rec.Affiliation,
			Email:       rec.Email,
		},
		CreatedAt: rec.CreatedAt,
	}
}

func toRecord(b model.Booking) BookingRecord {
	start, end := "", ""
	if c, ok := b.Start.(model.Clock); ok {
		start = c.String()
	} else if s, ok := b.Start.(string); ok {
		start = s
	}
	if c, ok := b.End.(model.Clock); ok {
		end = c.String()
	} else if s, ok := b.End.(string); ok {
		end = s
	}
	return BookingRecord{
		ID:           b.ID,
		BookingDate:  b.Date,
		StartTime:    start,
		EndTime:      end,
		ResourceType: JoinResources(b.Resources),
		PersonName:   b.Owner.Name,
		CompanyName:  b.Owner.Company,
		Affiliation:  b.Owner.Affiliation,
		Email:        b.Owner.Email,
		CreatedAt:    b.CreatedAt,
	}
}

// SplitResources parses the legacy comma-joined resource column into
// trimmed tokens. Empty segments are dropped.
func SplitResources(csv string) []string {
	var out []string
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// JoinResources renders a resource set back into the legacy column
// encoding.
func JoinResources(resources []string) string {
	trimmed := make([]string, 0, len(resources))
	for _, r := range resources {
		r = strings.TrimSpace(r)
		if r != "" {
			trimmed = append(trimmed, r)
		}
	}
	return strings.Join(trimmed, ", ")
}
