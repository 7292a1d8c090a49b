package user

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
)

const (
	RatingField      = "elo"
	NameField        = "name"
	AvatarField      = "avatar"
	AvatarImageField = "avatarImage"
)

var ErrNotObject = errors.New("user record is not a JSON object")

// Record is the logged-in user as stored in the shared slot. Only the rating
// is interpreted; every other field is carried through untouched so a write
// never drops data another page put there.
type Record struct {
	fields map[string]json.RawMessage
}

func NewRecord(name, avatar, avatarImage string) Record {
	r := Record{fields: map[string]json.RawMessage{}}
	r.setString(NameField, name)
	r.setString(AvatarField, avatar)
	r.setString(AvatarImageField, avatarImage)
	return r
}

// ParseRecord reports false for anything that is not a JSON object,
// including "null", so malformed data reads as "no user".
func ParseRecord(data []byte) (Record, bool) {
	var r Record
	if err := r.UnmarshalJSON(data); err != nil {
		return Record{}, false
	}
	return r, true
}

func (r *Record) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrNotObject
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return err
	}
	r.fields = fields
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.fields)
}

// Rating returns the stored rating when the field holds a JSON number.
func (r Record) Rating() (int, bool) {
	raw, ok := r.fields[RatingField]
	if !ok {
		return 0, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	n, isNum := v.(json.Number)
	if !isNum {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return clampInt(float64(i)), true
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return clampInt(math.Trunc(f)), true
}

func (r *Record) SetRating(rating int) {
	if r.fields == nil {
		r.fields = map[string]json.RawMessage{}
	}
	b, _ := json.Marshal(rating)
	r.fields[RatingField] = b
}

func (r Record) Name() string        { return r.str(NameField) }
func (r Record) Avatar() string      { return r.str(AvatarField) }
func (r Record) AvatarImage() string { return r.str(AvatarImageField) }

// Field returns a raw passthrough field.
func (r Record) Field(name string) (json.RawMessage, bool) {
	v, ok := r.fields[name]
	return v, ok
}

func (r Record) str(field string) string {
	raw, ok := r.fields[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (r *Record) setString(field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b, _ := json.Marshal(value)
	r.fields[field] = b
}

func clampInt(f float64) int {
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int(f)
}
