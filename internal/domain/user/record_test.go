package user

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseRecord_Malformed(t *testing.T) {
	for _, in := range []string{"", "null", "not json", "[1,2]", "42", `"str"`, "{broken"} {
		if _, ok := ParseRecord([]byte(in)); ok {
			t.Fatalf("expected %q to parse as no user", in)
		}
	}
}

func TestRecord_Rating(t *testing.T) {
	cases := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{in: `{"elo":1850}`, want: 1850, wantOK: true},
		{in: `{"elo":1850.9}`, want: 1850, wantOK: true},
		{in: `{"elo":-3}`, want: -3, wantOK: true},
		{in: `{"elo":1e3}`, want: 1000, wantOK: true},
		{in: `{"elo":"1850"}`, wantOK: false},
		{in: `{"elo":null}`, wantOK: false},
		{in: `{"name":"Ana"}`, wantOK: false},
	}
	for _, tc := range cases {
		rec, ok := ParseRecord([]byte(tc.in))
		if !ok {
			t.Fatalf("%s: expected record", tc.in)
		}
		got, ok := rec.Rating()
		if ok != tc.wantOK || got != tc.want {
			t.Fatalf("%s: got (%d,%v), want (%d,%v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestRecord_SetRatingKeepsOtherFields(t *testing.T) {
	rec, ok := ParseRecord([]byte(`{"name":"Ana","avatar":"🦊","elo":1200,"prefs":{"theme":"dark"}}`))
	if !ok {
		t.Fatalf("expected record")
	}
	rec.SetRating(1875)

	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, ok := ParseRecord(b)
	if !ok {
		t.Fatalf("expected record after round trip")
	}
	if r, _ := back.Rating(); r != 1875 {
		t.Fatalf("expected 1875, got %d", r)
	}
	if back.Name() != "Ana" || back.Avatar() != "🦊" {
		t.Fatalf("identity fields lost: %s", b)
	}
	prefs, ok := back.Field("prefs")
	if !ok || string(prefs) != `{"theme":"dark"}` {
		t.Fatalf("passthrough field lost: %s", prefs)
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(" Ana ", "", "data:image/png;base64,AAA")
	if rec.Name() != "Ana" {
		t.Fatalf("expected trimmed name, got %q", rec.Name())
	}
	if _, ok := rec.Field(AvatarField); ok {
		t.Fatalf("empty avatar should not be stored")
	}
	if _, ok := rec.Rating(); ok {
		t.Fatalf("new record should have no rating")
	}

	var zero Record
	b, err := zero.MarshalJSON()
	if err != nil || string(b) != "{}" {
		t.Fatalf("zero record marshal: %s %v", b, err)
	}
}

func TestCoerceNumber(t *testing.T) {
	cases := map[string]int{
		``:           0,
		`25`:         25,
		`-15`:        -15,
		`12.7`:       12,
		`"25"`:       25,
		`" 40 "`:     40,
		`"abc"`:      0,
		`""`:         0,
		`true`:       1,
		`false`:      0,
		`null`:       0,
		`{"a":1}`:    0,
		`[1]`:        0,
		`"1e2"`:      100,
		`"NaN"`:      0,
		`"Infinity"`: 0,
	}
	for in, want := range cases {
		if got := CoerceNumber(json.RawMessage(in)); got != want {
			t.Fatalf("CoerceNumber(%s) = %d, want %d", in, got, want)
		}
	}
}

func TestClampRating(t *testing.T) {
	if ClampRating(-50) != 0 || ClampRating(0) != 0 || ClampRating(1875) != 1875 {
		t.Fatalf("unexpected clamp results")
	}
	if ClampRating(1<<31) != MaxRating || ClampRating(math.MaxInt) != MaxRating {
		t.Fatalf("ratings above MaxRating should clamp")
	}
}

func TestAddRating_Saturates(t *testing.T) {
	cases := []struct {
		base, delta, want int
	}{
		{1850, 25, 1875},
		{1850, -2000, -150},
		{1500, math.MaxInt, math.MaxInt},
		{-5, math.MinInt, math.MinInt},
		{math.MaxInt, math.MinInt, -1},
	}
	for _, tc := range cases {
		if got := AddRating(tc.base, tc.delta); got != tc.want {
			t.Fatalf("AddRating(%d, %d) = %d, want %d", tc.base, tc.delta, got, tc.want)
		}
	}
}
