// Package record defines the raw submission as delivered by the collection
// API and typed accessors over it.
//
// A Record is an open key/value map. Mappers never index it directly; they go
// through the accessors here, keyed by the Key constants in keys.go, so every
// field the pipeline depends on is listed in one place.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Record is one unprocessed submission.
type Record map[string]any

// Has reports whether k is present with a non-null value.
func (r Record) Has(k Key) bool {
	v, ok := r[string(k)]
	return ok && v != nil
}

// String returns the trimmed text form of k, or "" when absent.
// Lists and objects are rendered as compact JSON.
func (r Record) String(k Key) string {
	return Stringify(r[string(k)])
}

// StringOr returns the text form of k, or def when it is absent or blank.
func (r Record) StringOr(k Key, def string) string {
	if s := r.String(k); s != "" {
		return s
	}
	return def
}

// Int returns k as an integer. The second result is false when k is absent
// or not an integral number.
func (r Record) Int(k Key) (int64, bool) {
	return toInt(r[string(k)])
}

// Float returns k as a float64.
func (r Record) Float(k Key) (float64, bool) {
	return toFloat(r[string(k)])
}

// List returns k as a list, or nil when k is absent or not a list.
func (r Record) List(k Key) []any {
	l, _ := r[string(k)].([]any)
	return l
}

// Object returns k as a JSON object, or nil.
func (r Record) Object(k Key) map[string]any {
	o, _ := r[string(k)].(map[string]any)
	return o
}

// JSON renders k as compact JSON, substituting def when k is absent.
func (r Record) JSON(k Key, def string) string {
	v, ok := r[string(k)]
	if !ok || v == nil {
		return def
	}
	b, err := json.Marshal(v)
	if err != nil {
		return def
	}
	return string(b)
}

// ID returns the source-assigned submission id.
func (r Record) ID() (int64, bool) {
	return r.Int(KeyID)
}

// ResponseKeys returns the question keys in r that become responses,
// sorted for stable output.
func (r Record) ResponseKeys() []Key {
	keys := make([]Key, 0, len(r))
	for k := range r {
		if IsResponseKey(Key(k)) {
			keys = append(keys, Key(k))
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Unknown returns keys that are neither catalogued nor response answers.
func (r Record) Unknown() []string {
	var out []string
	for k := range r {
		if strings.HasPrefix(k, "_") || Known(Key(k)) || IsResponseKey(Key(k)) {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Value returns the untyped value stored under k.
func (r Record) Value(k Key) any {
	return r[string(k)]
}

// Stringify renders a decoded JSON value as text.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any, map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toInt(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Decode parses one JSON object into a Record. Numbers are kept as
// json.Number so large ids survive.
func Decode(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// DecodeBatch reads either a JSON array of records or a page envelope
// ({"results": [...]}) from r.
func DecodeBatch(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	inner := json.NewDecoder(bytes.NewReader(trimmed))
	inner.UseNumber()

	if trimmed[0] == '[' {
		var recs []Record
		if err := inner.Decode(&recs); err != nil {
			return nil, fmt.Errorf("decode batch: %w", err)
		}
		return recs, nil
	}

	var env struct {
		Results []Record `json:"results"`
	}
	if err := inner.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return env.Results, nil
}
