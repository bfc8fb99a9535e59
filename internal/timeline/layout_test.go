package timeline

import (
	"math"
	"reflect"
	"testing"
	"time"

	"bookcal/internal/catalog"
	"bookcal/internal/model"
)

var (
	dayD  = time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	inWin = model.TimeWindow{
		Start: dayD.AddDate(0, 0, -7),
		End:   dayD.AddDate(0, 0, 21),
	}
)

func layoutCatalog() *catalog.Catalog {
	return catalog.FromEntries([]catalog.Entry{
		{Name: "Room1", Color: "#1E88E5"},
		{Name: "Room2", Color: "#43A047"},
		{Name: "Room3", Color: "#FB8C00"},
		{Name: "Room4", Color: "#E5B71E"},
		{Name: "Room5", Color: "#6A1EE5"},
	})
}

func booking(id string, date time.Time, start, end string, resources ...string) model.Booking {
	return model.Booking{ID: id, Date: date, Start: start, End: end, Resources: resources}
}

func TestLayoutEmptyInput(t *testing.T) {
	res := Layout(nil, layoutCatalog(), inWin)
	if res.Reason != ReasonEmptyInput {
		t.Fatalf("reason = %q", res.Reason)
	}
}

func TestLayoutAllRowsUnparsable(t *testing.T) {
	bs := []model.Booking{
		booking("a", dayD, "nope", "10:00:00", "Room1"),
		booking("b", dayD, "09:00:00", "nonsense", "Room1"),
	}
	res := Layout(bs, layoutCatalog(), inWin)
	if res.Reason != ReasonAllRowsUnparsable {
		t.Fatalf("reason = %q", res.Reason)
	}
}

func TestLayoutInvalidWindow(t *testing.T) {
	bs := []model.Booking{booking("a", dayD, "09:00:00", "10:00:00", "Room1")}
	res := Layout(bs, layoutCatalog(), model.TimeWindow{Start: dayD, End: dayD})
	if res.Reason != ReasonInvalidWindow {
		t.Fatalf("reason = %q", res.Reason)
	}
}

func TestLayoutOutOfWindowDiagnostics(t *testing.T) {
	early := dayD.AddDate(0, 0, -30)
	late := dayD.AddDate(0, 0, -20)
	bs := []model.Booking{
		booking("a", early, "09:00:00", "10:00:00", "Room1"),
		booking("b", late, "09:00:00", "10:00:00", "Room2"),
	}
	res := Layout(bs, layoutCatalog(), inWin)
	if res.Reason != ReasonOutOfWindow {
		t.Fatalf("reason = %q", res.Reason)
	}
	if !res.MinDate.Equal(early) || !res.MaxDate.Equal(late) {
		t.Fatalf("min/max = %v/%v, want %v/%v", res.MinDate, res.MaxDate, early, late)
	}
}

func TestLayoutNoCatalogMatch(t *testing.T) {
	bs := []model.Booking{booking("a", dayD, "09:00:00", "10:00:00", "Broom Closet")}
	res := Layout(bs, layoutCatalog(), inWin)
	if res.Reason != ReasonNoCatalogMatch {
		t.Fatalf("reason = %q", res.Reason)
	}
}

func TestLayoutFiveBookingsSymmetricOffsets(t *testing.T) {
	bs := []model.Booking{
		booking("a", dayD, "09:00:00", "10:00:00", "Room1"),
		booking("b", dayD, "09:00:00", "10:00:00", "Room2"),
		booking("c", dayD, "10:00:00", "11:00:00", "Room3"),
		booking("d", dayD, "11:00:00", "12:00:00", "Room4"),
		booking("e", dayD, "13:00:00", "14:30:00", "Room5"),
	}
	res := Layout(bs, layoutCatalog(), inWin)
	if res.Reason != ReasonOK {
		t.Fatalf("reason = %q", res.Reason)
	}
	if len(res.Units) != 5 {
		t.Fatalf("units = %d, want 5", len(res.Units))
	}

	seen := map[int]bool{}
	sum := 0.0
	for _, u := range res.Units {
		if seen[u.SlotIndex] {
			t.Fatalf("duplicate slot index %d", u.SlotIndex)
		}
		seen[u.SlotIndex] = true
		sum += u.Offset
	}
	for i := 0; i < 5; i++ {
		if !seen[i] {
			t.Fatalf("missing slot index %d", i)
		}
	}
	if math.Abs(sum) > 1e-9 {
		t.Fatalf("offsets sum = %v, want ~0 (centered)", sum)
	}
	if res.RowsPlotted != 5 {
		t.Fatalf("rows plotted = %d", res.RowsPlotted)
	}
}

func TestLayoutMultiResourceExplode(t *testing.T) {
	bs := []model.Booking{
		booking("a", dayD, "09:00:00", "10:00:00", "Room1", "Room2", "Not A Room"),
		booking("b", dayD, "10:00:00", "11:00:00", "Room3"),
	}
	res := Layout(bs, layoutCatalog(), inWin)
	if res.Reason != ReasonOK {
		t.Fatalf("reason = %q", res.Reason)
	}
	// One unit per (booking, matched resource): 2 + 1.
	if len(res.Units) != 3 {
		t.Fatalf("units = %d, want 3", len(res.Units))
	}
	for i, u := range res.Units {
		if u.SlotIndex != i {
			t.Fatalf("slot %d = %d, want input order", i, u.SlotIndex)
		}
	}
	if res.RowsPlotted != 2 {
		t.Fatalf("rows plotted = %d, want 2 (bookings, not units)", res.RowsPlotted)
	}
}

func TestLayoutDurationClamp(t *testing.T) {
	bs := []model.Booking{
		booking("a", dayD, "10:00:00", "09:00:00", "Room1"), // inverted
		booking("b", dayD, "11:00:00", "11:00:00", "Room2"), // zero length
	}
	res := Layout(bs, layoutCatalog(), inWin)
	if res.Reason != ReasonOK {
		t.Fatalf("reason = %q", res.Reason)
	}
	if res.InvalidDurations != 2 {
		t.Fatalf("invalid durations = %d, want 2", res.InvalidDurations)
	}
	for _, u := range res.Units {
		if u.DurationHours != 0.25 {
			t.Fatalf("duration = %v, want clamp to 0.25", u.DurationHours)
		}
	}
}

func TestLayoutDeterminism(t *testing.T) {
	bs := []model.Booking{
		booking("a", dayD, "09:00:00", "10:00:00", "Room1", "Room2"),
		booking("b", dayD, "09:30:00", "11:00:00", "Room3"),
		booking("c", dayD.AddDate(0, 0, 1), "14:00:00", "16:00:00", "Room1"),
	}
	first := Layout(bs, layoutCatalog(), inWin)
	second := Layout(bs, layoutCatalog(), inWin)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("layout is not deterministic for identical input")
	}
}

func TestLayoutWidthShrinksWithDensity(t *testing.T) {
	sparse := Layout([]model.Booking{
		booking("a", dayD, "09:00:00", "10:00:00", "Room1"),
	}, layoutCatalog(), inWin)

	var dense []model.Booking
	names := []string{"Room1", "Room2", "Room3", "Room4", "Room5"}
	for i, n := range names {
		dense = append(dense, booking(string(rune('a'+i)), dayD, "09:00:00", "10:00:00", n))
	}
	denseRes := Layout(dense, layoutCatalog(), inWin)

	if denseRes.UnitWidth >= sparse.UnitWidth {
		t.Fatalf("dense width %v must be below sparse width %v", denseRes.UnitWidth, sparse.UnitWidth)
	}
	if sparse.UnitWidth > maxUnitWidth || denseRes.UnitWidth < minUnitWidth {
		t.Fatal("width clamps violated")
	}
}
