package timeval

import (
	"errors"
	"testing"
	"time"

	"bookcal/internal/model"
)

func TestNormalizeEquivalentForms(t *testing.T) {
	// All of these represent 09:30 and must land on 9.5 fractional hours.
	inputs := map[string]any{
		"hh:mm:ss string":   "09:30:00",
		"hh:mm string":      "09:30",
		"day-count prefix":  "0 days 09:30:00",
		"duration":          9*time.Hour + 30*time.Minute,
		"clock":             model.Clock{Hour: 9, Minute: 30},
		"time.Time":         time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		"datetime fallback": "2025-03-01 09:30:00",
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			c, err := Normalize(raw)
			if err != nil {
				t.Fatalf("Normalize(%v): %v", raw, err)
			}
			if got := FractionalHours(c); got != 9.5 {
				t.Fatalf("FractionalHours = %v, want 9.5", got)
			}
		})
	}
}

func TestNormalizeSeconds(t *testing.T) {
	c, err := Normalize("10:15:30")
	if err != nil {
		t.Fatal(err)
	}
	want := model.Clock{Hour: 10, Minute: 15, Second: 30}
	if c != want {
		t.Fatalf("got %+v, want %+v", c, want)
	}
	if got := FractionalHours(c); got != 10.0+15.0/60.0+30.0/3600.0 {
		t.Fatalf("FractionalHours = %v", got)
	}
}

func TestNormalizeDurationWrapsPastMidnight(t *testing.T) {
	c, err := Normalize(25 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if c.Hour != 1 || c.Minute != 0 {
		t.Fatalf("25h wrapped to %+v, want 01:00:00", c)
	}
}

func TestNormalizeUnparsable(t *testing.T) {
	for _, raw := range []any{"", "not a time", 42, nil, "99:99:99"} {
		if _, err := Normalize(raw); !errors.Is(err, ErrUnparsable) {
			t.Fatalf("Normalize(%v) err = %v, want ErrUnparsable", raw, err)
		}
	}
}

func TestCombine(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, loc)
	got := Combine(date, model.Clock{Hour: 14, Minute: 45})
	want := time.Date(2025, 6, 10, 14, 45, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("Combine = %v, want %v", got, want)
	}
}
