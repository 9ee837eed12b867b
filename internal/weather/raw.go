package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawRecord is an upstream JSON object whose fields are decoded lazily and
// independently, so one malformed field never hides its siblings.
type RawRecord map[string]json.RawMessage

// ParseRawRecord decodes a JSON object. Anything that is not an object is ErrParse.
func ParseRawRecord(data []byte) (RawRecord, error) {
	var r RawRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: expected JSON object", ErrParse)
	}
	return r, nil
}

// Has reports whether key is present with a non-null value.
func (r RawRecord) Has(key string) bool {
	v, ok := r[key]
	return ok && !isNull(v)
}

// Object returns the nested object at key, or nil.
func (r RawRecord) Object(key string) RawRecord {
	v, ok := r[key]
	if !ok || isNull(v) {
		return nil
	}
	var out RawRecord
	if err := json.Unmarshal(v, &out); err != nil {
		return nil
	}
	return out
}

// First returns the first element of the array at key when it is an object, or nil.
func (r RawRecord) First(key string) RawRecord {
	v, ok := r[key]
	if !ok || isNull(v) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil || len(items) == 0 {
		return nil
	}
	var out RawRecord
	if err := json.Unmarshal(items[0], &out); err != nil {
		return nil
	}
	return out
}

// Items returns the elements of the array at key. Elements that are not
// objects come back as empty records so positions are preserved.
func (r RawRecord) Items(key string) ([]RawRecord, bool) {
	v, ok := r[key]
	if !ok || isNull(v) {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, false
	}
	out := make([]RawRecord, 0, len(items))
	for _, item := range items {
		var rec RawRecord
		if err := json.Unmarshal(item, &rec); err != nil || rec == nil {
			rec = RawRecord{}
		}
		out = append(out, rec)
	}
	return out, true
}

// Text returns a string or number field as text.
func (r RawRecord) Text(key string) (string, bool) {
	v, ok := r[key]
	if !ok || isNull(v) {
		return "", false
	}
	v = bytes.TrimSpace(v)
	if len(v) > 0 && v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", false
		}
		return s, true
	}
	if len(v) > 0 && (v[0] == '{' || v[0] == '[') {
		return "", false
	}
	return string(v), true
}

// Float returns a finite numeric field (JSON number or numeric string), or nil.
func (r RawRecord) Float(key string) *float64 {
	s, ok := r.Text(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Int64 returns an integral numeric field, or false.
func (r RawRecord) Int64(key string) (int64, bool) {
	s, ok := r.Text(key)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
