package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testCatalog() *Catalog {
	return FromEntries([]Entry{
		{Name: "3D Printer(FDM)", Color: "#1EE56A", Rate: "0"},
		{Name: "Digital Microscope", Color: "#E5B71E", Rate: "200"},
		{Name: "Solder Station", Color: "#E21EE5", Rate: "100"},
	})
}

func TestCanonicalCaseInsensitive(t *testing.T) {
	c := testCatalog()

	name, ok := c.Canonical("  digital microscope ")
	if !ok || name != "Digital Microscope" {
		t.Fatalf("Canonical = %q, %v", name, ok)
	}
	if _, ok := c.Canonical("Laser Cutter"); ok {
		t.Fatal("unknown token must not match")
	}
}

func TestMatchDropsUnknownTokens(t *testing.T) {
	c := testCatalog()

	got := c.Match([]string{"solder station", "something else", "3d printer(fdm)"})
	want := []string{"Solder Station", "3D Printer(FDM)"}
	if len(got) != len(want) {
		t.Fatalf("Match = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Match[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRateAndColorFallbacks(t *testing.T) {
	c := testCatalog()

	if !c.Rate("Digital Microscope").Equal(decimal.NewFromInt(200)) {
		t.Fatalf("rate = %v", c.Rate("Digital Microscope"))
	}
	if !c.Rate("unknown").IsZero() {
		t.Fatal("unknown kind must rate zero")
	}
	if c.Color("unknown") != DefaultColor {
		t.Fatalf("color = %q", c.Color("unknown"))
	}
}

func TestNewDropsDuplicatesAndBlanks(t *testing.T) {
	c := New([]Kind{
		{Name: "iMAC"},
		{Name: "imac"},
		{Name: "  "},
	})
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}
