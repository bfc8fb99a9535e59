// Package catalog holds the fixed set of bookable resource kinds with
// their display colors and hourly rates. A catalog is built once at
// startup from configuration and treated as immutable afterwards.
package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultColor is used for kinds without a configured color.
const DefaultColor = "#E53935"

// Kind is a single bookable resource kind.
type Kind struct {
	Name       string
	Color      string
	HourlyRate decimal.Decimal
}

// Entry is the configuration-facing shape of a kind; the rate is a
// decimal string so YAML never goes through float.
type Entry struct {
	Name  string
	Color string
	Rate  string
}

// Catalog is an ordered, immutable set of resource kinds with
// case-insensitive lookup by name.
type Catalog struct {
	kinds   []Kind
	byLower map[string]int
}

// New builds a catalog from kinds, preserving order. Later duplicates
// (case-insensitive) are dropped.
func New(kinds []Kind) *Catalog {
	c := &Catalog{byLower: make(map[string]int, len(kinds))}
	for _, k := range kinds {
		name := strings.TrimSpace(k.Name)
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if _, ok := c.byLower[lower]; ok {
			continue
		}
		k.Name = name
		if k.Color == "" {
			k.Color = DefaultColor
		}
		c.byLower[lower] = len(c.kinds)
		c.kinds = append(c.kinds, k)
	}
	return c
}

// FromEntries builds a catalog from config entries. Rates that fail to
// parse become zero rather than failing the whole catalog.
func FromEntries(entries []Entry) *Catalog {
	kinds := make([]Kind, 0, len(entries))
	for _, e := range entries {
		rate := decimal.Zero
		if e.Rate != "" {
			if d, err := decimal.NewFromString(e.Rate); err == nil {
				rate = d
			}
		}
		kinds = append(kinds, Kind{Name: e.Name, Color: e.Color, HourlyRate: rate})
	}
	return New(kinds)
}

// Kinds returns the kinds in catalog order.
func (c *Catalog) Kinds() []Kind {
	return c.kinds
}

// Len returns the number of kinds.
func (c *Catalog) Len() int {
	return len(c.kinds)
}

// Canonical resolves a free-text token to its canonical kind name,
// matching case-insensitively with surrounding whitespace ignored.
func (c *Catalog) Canonical(token string) (string, bool) {
	idx, ok := c.byLower[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return "", false
	}
	return c.kinds[idx].Name, true
}

// Match filters tokens to canonical kind names, preserving token order.
// Unmatched free-text tokens are dropped; the caller decides whether an
// empty result is noteworthy.
func (c *Catalog) Match(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		if name, ok := c.Canonical(tok); ok {
			out = append(out, name)
		}
	}
	return out
}

// Color returns the display color for a kind, or DefaultColor for
// unknown names.
func (c *Catalog) Color(name string) string {
	if idx, ok := c.byLower[strings.ToLower(name)]; ok {
		return c.kinds[idx].Color
	}
	return DefaultColor
}

// Rate returns the hourly rate for a kind; unknown names rate zero.
func (c *Catalog) Rate(name string) decimal.Decimal {
	if idx, ok := c.byLower[strings.ToLower(name)]; ok {
		return c.kinds[idx].HourlyRate
	}
	return decimal.Zero
}
