package store

import (
	"testing"
	"time"

	"bookcal/internal/model"
)

func TestSplitResources(t *testing.T) {
	got := SplitResources("iMAC, Solder Station, ,3D Printer(FDM)")
	want := []string{"iMAC", "Solder Station", "3D Printer(FDM)"}
	if len(got) != len(want) {
		t.Fatalf("SplitResources = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SplitResources[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := SplitResources(""); got != nil {
		t.Fatalf("empty column = %v, want nil", got)
	}
}

func TestJoinResources(t *testing.T) {
	got := JoinResources([]string{" iMAC ", "", "Solder Station"})
	if got != "iMAC, Solder Station" {
		t.Fatalf("JoinResources = %q", got)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	loc := time.UTC
	s := &Store{loc: loc}

	b := model.Booking{
		ID:        "abc",
		Date:      time.Date(2025, 5, 20, 0, 0, 0, 0, loc),
		Start:     model.Clock{Hour: 9, Minute: 30},
		End:       model.Clock{Hour: 11},
		Resources: []string{"iMAC", "Solder Station"},
		Owner: model.Owner{
			Name:        "Asha",
			Company:     "Acme",
			Affiliation: "Other",
			Email:       "asha@example.com",
		},
		CreatedAt: time.Date(2025, 5, 19, 12, 0, 0, 0, loc),
	}

	rec := toRecord(b)
	if rec.StartTime != "09:30:00" || rec.EndTime != "11:00:00" {
		t.Fatalf("times = %q %q", rec.StartTime, rec.EndTime)
	}
	if rec.ResourceType != "iMAC, Solder Station" {
		t.Fatalf("resource column = %q", rec.ResourceType)
	}

	back := s.toModel(rec)
	if back.ID != b.ID || !back.Date.Equal(b.Date) {
		t.Fatalf("round trip identity mismatch: %+v", back)
	}
	// Times come back in the stored string form.
	if back.Start != "09:30:00" || back.End != "11:00:00" {
		t.Fatalf("round trip times = %v %v", back.Start, back.End)
	}
	if len(back.Resources) != 2 || back.Resources[0] != "iMAC" {
		t.Fatalf("round trip resources = %v", back.Resources)
	}
	if back.Owner != b.Owner {
		t.Fatalf("round trip owner = %+v", back.Owner)
	}
}
