package rank

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func threeTier(t *testing.T) Table {
	t.Helper()
	tbl, err := NewTable(
		Tier{Key: "beginner", Name: "Beginner", Min: 0, Max: 1399},
		Tier{Key: "intermediate", Name: "Intermediate", Min: 1400, Max: 1799},
		Tier{Key: "advanced", Name: "Advanced", Min: 1800, Max: 2199},
	)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func TestClassify_Scenario(t *testing.T) {
	tbl := threeTier(t)

	beginner := tbl.Classify(1200)
	if beginner.Key != "beginner" {
		t.Fatalf("expected beginner, got %s", beginner.Key)
	}
	if got := Progress(1200, beginner); math.Abs(got-1200.0/1399.0) > 1e-9 {
		t.Fatalf("expected %.4f, got %.4f", 1200.0/1399.0, got)
	}

	inter := tbl.Classify(1400)
	if inter.Key != "intermediate" {
		t.Fatalf("expected intermediate, got %s", inter.Key)
	}
	if got := Progress(1400, inter); got != 0 {
		t.Fatalf("expected 0 at tier min, got %v", got)
	}
}

func TestClassify_ExactlyOneTierMatches(t *testing.T) {
	for _, tbl := range []Table{Standard(), Compact(), threeTier(t)} {
		top := tbl.Tiers()[tbl.Len()-1].Max
		for r := 0; r <= top; r += 7 {
			matches := 0
			for _, tier := range tbl.Tiers() {
				if tier.Contains(r) {
					matches++
				}
			}
			if matches != 1 {
				t.Fatalf("rating %d matched %d tiers", r, matches)
			}
			if got := tbl.Classify(r); !got.Contains(r) {
				t.Fatalf("rating %d classified into %s [%d,%d]", r, got.Key, got.Min, got.Max)
			}
		}
	}
}

func TestClassify_FallbackToLowest(t *testing.T) {
	tbl := threeTier(t)
	for _, r := range []int{-1, -5000, 2200, math.MaxInt} {
		if got := tbl.Classify(r); got.Key != "beginner" {
			t.Fatalf("rating %d: expected beginner fallback, got %s", r, got.Key)
		}
	}

	var empty Table
	if got := empty.Classify(10); got != (Tier{}) {
		t.Fatalf("expected zero tier from empty table, got %+v", got)
	}
}

func TestProgress_Bounds(t *testing.T) {
	tier := Tier{Key: "mid", Min: 1400, Max: 1799}

	if got := Progress(tier.Min, tier); got != 0 {
		t.Fatalf("expected 0 at min, got %v", got)
	}
	if got := Progress(tier.Max, tier); got != 1 {
		t.Fatalf("expected 1 at max, got %v", got)
	}

	prev := -1.0
	for r := tier.Min; r <= tier.Max; r++ {
		got := Progress(r, tier)
		if got < prev {
			t.Fatalf("progress decreased at %d: %v < %v", r, got, prev)
		}
		prev = got
	}

	for _, r := range []int{-100000, -1, 0, 1399, 1800, 1 << 30} {
		got := Progress(r, tier)
		if got < 0 || got > 1 {
			t.Fatalf("progress out of range for %d: %v", r, got)
		}
	}
}

func TestProgress_ZeroWidthTier(t *testing.T) {
	tier := Tier{Key: "point", Min: 500, Max: 500}
	if got := Progress(500, tier); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := Progress(501, tier); got != 1 {
		t.Fatalf("expected clamp to 1, got %v", got)
	}
}

func TestProgress_ExtremeRatings(t *testing.T) {
	tier := Tier{Key: "mid", Min: 1400, Max: 1799}
	for _, r := range []int{math.MinInt, -1 << 62, math.MinInt + 1400} {
		if got := Progress(r, tier); got != 0 {
			t.Fatalf("Progress(%d) = %v, want 0", r, got)
		}
	}
	if got := Progress(math.MaxInt, tier); got != 1 {
		t.Fatalf("Progress(MaxInt) = %v, want 1", got)
	}
	wide := Tier{Key: "all", Min: math.MinInt, Max: math.MaxInt}
	if got := Progress(0, wide); got < 0.49 || got > 0.51 {
		t.Fatalf("expected mid progress in the widest tier, got %v", got)
	}
}

func TestNewTable_Validation(t *testing.T) {
	cases := []struct {
		name  string
		tiers []Tier
	}{
		{name: "empty"},
		{name: "nonzero start", tiers: []Tier{{Key: "a", Min: 1, Max: 10}}},
		{name: "gap", tiers: []Tier{{Key: "a", Min: 0, Max: 10}, {Key: "b", Min: 12, Max: 20}}},
		{name: "overlap", tiers: []Tier{{Key: "a", Min: 0, Max: 10}, {Key: "b", Min: 10, Max: 20}}},
		{name: "inverted", tiers: []Tier{{Key: "a", Min: 0, Max: 10}, {Key: "b", Min: 11, Max: 5}}},
		{name: "duplicate key", tiers: []Tier{{Key: "a", Min: 0, Max: 10}, {Key: "a", Min: 11, Max: 20}}},
		{name: "blank key", tiers: []Tier{{Key: " ", Min: 0, Max: 10}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTable(tc.tiers...)
			if !errors.Is(err, ErrInvalidTable) {
				t.Fatalf("expected ErrInvalidTable, got %v", err)
			}
		})
	}
}

func TestNewTable_SortsUnorderedInput(t *testing.T) {
	tbl, err := NewTable(
		Tier{Key: "high", Min: 100, Max: 199},
		Tier{Key: "low", Min: 0, Max: 99},
	)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if tbl.Lowest().Key != "low" {
		t.Fatalf("expected low first, got %s", tbl.Lowest().Key)
	}
	if got := tbl.Classify(150).Key; got != "high" {
		t.Fatalf("expected high, got %s", got)
	}
}

func TestPreset(t *testing.T) {
	std, err := Preset("")
	if err != nil || std.Len() != 6 {
		t.Fatalf("expected 6-tier standard preset, got len=%d err=%v", std.Len(), err)
	}
	cmp, err := Preset("Compact")
	if err != nil || cmp.Len() != 3 {
		t.Fatalf("expected 3-tier compact preset, got len=%d err=%v", cmp.Len(), err)
	}
	if got := cmp.Classify(1200).Key; got != "beginner" {
		t.Fatalf("compact: expected beginner at 1200, got %s", got)
	}
	if got := cmp.Classify(1201).Key; got != "intermediate" {
		t.Fatalf("compact: expected intermediate at 1201, got %s", got)
	}
	if _, err := Preset("ladder"); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("expected ErrInvalidTable for unknown preset, got %v", err)
	}
}

func TestLoadTable(t *testing.T) {
	doc := `tiers:
  - {key: beginner, name: Beginner, class: rank-beginner, min: 0, max: 1399}
  - {key: intermediate, name: Intermediate, class: rank-intermediate, min: 1400, max: 1799}
  - {key: advanced, name: Advanced, class: rank-advanced, min: 1800, max: 9999}
`
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tbl, err := Resolve(PresetStandard, path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("expected 3 tiers, got %d", tbl.Len())
	}
	got := tbl.Classify(1850)
	if got.Key != "advanced" || got.Class != "rank-advanced" {
		t.Fatalf("unexpected tier %+v", got)
	}

	if _, err := ParseTable([]byte("tiers: [{key: a, min: 5, max: 9}]")); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("expected ErrInvalidTable, got %v", err)
	}
	if _, err := ParseTable([]byte("tiers: {")); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("expected ErrInvalidTable for bad yaml, got %v", err)
	}
}
