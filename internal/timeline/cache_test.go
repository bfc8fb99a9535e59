package timeline

import (
	"testing"
	"time"

	"bookcal/internal/model"
)

func TestCacheHitAndMiss(t *testing.T) {
	c := NewCache(time.Hour)
	fp := model.Fingerprint{Rows: 3, MaxCreatedAt: time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)}
	res := Result{Reason: ReasonOK, RowsPlotted: 3}

	if _, ok := c.Get(fp); ok {
		t.Fatal("empty cache must miss")
	}

	c.Put(fp, res)
	got, ok := c.Get(fp)
	if !ok || got.RowsPlotted != 3 {
		t.Fatalf("Get = %+v, %v", got, ok)
	}

	// A different fingerprint misses even though an entry exists.
	other := fp
	other.Rows = 4
	if _, ok := c.Get(other); ok {
		t.Fatal("mismatched fingerprint must miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Hour)
	clock := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	fp := model.Fingerprint{Rows: 1}
	c.Put(fp, Result{Reason: ReasonOK})

	clock = clock.Add(59 * time.Minute)
	if _, ok := c.Get(fp); !ok {
		t.Fatal("entry expired early")
	}

	clock = clock.Add(2 * time.Minute)
	if _, ok := c.Get(fp); ok {
		t.Fatal("entry must expire after the TTL")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(time.Hour)
	fp := model.Fingerprint{Rows: 1}
	c.Put(fp, Result{Reason: ReasonOK})

	c.Invalidate()
	if _, ok := c.Get(fp); ok {
		t.Fatal("invalidated cache must miss")
	}
}

func TestCachedComputesOnceWhileFresh(t *testing.T) {
	c := NewCache(time.Hour)
	fp := model.Fingerprint{Rows: 2}

	computations := 0
	compute := func() Result {
		computations++
		return Result{Reason: ReasonOK, RowsPlotted: 2}
	}

	c.Cached(fp, compute)
	c.Cached(fp, compute)
	if computations != 1 {
		t.Fatalf("computations = %d, want 1", computations)
	}

	// New fingerprint recomputes.
	fp.Rows = 3
	c.Cached(fp, compute)
	if computations != 2 {
		t.Fatalf("computations = %d, want 2", computations)
	}
}
