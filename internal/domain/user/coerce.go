package user

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CoerceNumber turns loosely typed input into a rating value. Numbers
// truncate, numeric strings parse, booleans count as 1 or 0 and anything
// else (null, objects, unparsable text) is 0.
func CoerceNumber(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0
	}

	switch t := v.(type) {
	case json.Number:
		return coerceString(t.String())
	case string:
		return coerceString(t)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func coerceString(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return clampInt(math.Trunc(f))
}

// MaxRating is the largest rating a record can hold and read back.
const MaxRating = math.MaxInt32

// ClampRating applies the bounds every stored rating obeys.
func ClampRating(rating int) int {
	return min(MaxRating, max(0, rating))
}

// AddRating adds delta to base, saturating instead of wrapping around.
func AddRating(base, delta int) int {
	switch {
	case delta > 0 && base > math.MaxInt-delta:
		return math.MaxInt
	case delta < 0 && base < math.MinInt-delta:
		return math.MinInt
	}
	return base + delta
}
