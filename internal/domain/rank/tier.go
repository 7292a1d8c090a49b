package rank

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Tier is a named band of the rating axis. Min and Max are both inclusive.
type Tier struct {
	Key   string `json:"key" yaml:"key"`
	Name  string `json:"name" yaml:"name"`
	Class string `json:"class" yaml:"class"`
	Min   int    `json:"min" yaml:"min"`
	Max   int    `json:"max" yaml:"max"`
}

func (t Tier) Contains(rating int) bool {
	return rating >= t.Min && rating <= t.Max
}

var ErrInvalidTable = errors.New("invalid tier table")

// Table is an ordered partition of [0, top.Max] into tiers.
type Table struct {
	tiers []Tier
}

// NewTable sorts tiers by Min and checks that they partition the rating axis
// starting at zero with no gaps and no overlaps.
func NewTable(tiers ...Tier) (Table, error) {
	if len(tiers) == 0 {
		return Table{}, fmt.Errorf("%w: no tiers", ErrInvalidTable)
	}

	sorted := slices.Clone(tiers)
	slices.SortFunc(sorted, func(a, b Tier) int { return cmp.Compare(a.Min, b.Min) })

	seen := make(map[string]struct{}, len(sorted))
	for i, t := range sorted {
		key := strings.TrimSpace(t.Key)
		if key == "" {
			return Table{}, fmt.Errorf("%w: tier %d has empty key", ErrInvalidTable, i)
		}
		if _, dup := seen[key]; dup {
			return Table{}, fmt.Errorf("%w: duplicate key %q", ErrInvalidTable, key)
		}
		seen[key] = struct{}{}

		if t.Max < t.Min {
			return Table{}, fmt.Errorf("%w: %s max %d below min %d", ErrInvalidTable, key, t.Max, t.Min)
		}
		if i == 0 {
			if t.Min != 0 {
				return Table{}, fmt.Errorf("%w: lowest tier %s starts at %d, want 0", ErrInvalidTable, key, t.Min)
			}
			continue
		}
		prev := sorted[i-1]
		if t.Min <= prev.Max {
			return Table{}, fmt.Errorf("%w: %s overlaps %s", ErrInvalidTable, key, prev.Key)
		}
		if t.Min != prev.Max+1 {
			return Table{}, fmt.Errorf("%w: gap between %s and %s", ErrInvalidTable, prev.Key, key)
		}
	}

	return Table{tiers: sorted}, nil
}

// MustTable is NewTable for package-level presets.
func MustTable(tiers ...Tier) Table {
	t, err := NewTable(tiers...)
	if err != nil {
		panic(err)
	}
	return t
}

// Tiers returns a copy of the tiers, lowest first.
func (t Table) Tiers() []Tier {
	return slices.Clone(t.tiers)
}

func (t Table) Lowest() Tier {
	if len(t.tiers) == 0 {
		return Tier{}
	}
	return t.tiers[0]
}

// Classify returns the tier containing rating. Ratings outside every tier
// (negative, or above the top sentinel) get the lowest tier.
func (t Table) Classify(rating int) Tier {
	for _, tier := range t.tiers {
		if tier.Contains(rating) {
			return tier
		}
	}
	return t.Lowest()
}

// Keys lists the simple style tags, used by consumers that strip every tier
// class before applying the current one.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t.tiers))
	for _, tier := range t.tiers {
		keys = append(keys, tier.Key)
	}
	return keys
}

func (t Table) Len() int {
	return len(t.tiers)
}
