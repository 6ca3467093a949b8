// Package payload models the semi-structured records returned by the
// Fast-Weigh GraphQL API: a tree of maps, lists, and scalars addressed by
// dotted paths, with best-effort coercion into the types the warehouse needs.
//
// All field resolution downstream of extraction goes through Record. Lookup
// never panics on missing or mis-shaped data; coercion helpers return nil
// when a value is absent or unparsable so a bad field degrades to NULL
// instead of aborting a row.
package payload

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Record is one raw API record as decoded JSON.
type Record map[string]any

// Decode parses a JSON document into a Record.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// Encode serializes the record to compact JSON.
func Encode(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// Lookup walks a dotted path ("dispatch.assignedAt") through nested maps.
// Returns false if any segment is missing, nil, or not an object.
func (r Record) Lookup(path string) (any, bool) {
	var value any = map[string]any(r)
	for _, key := range strings.Split(path, ".") {
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok = obj[key]
		if !ok || value == nil {
			return nil, false
		}
	}
	return value, true
}

// First returns the value at the first path that resolves to a non-null
// value. This is the alias-priority coalesce rule: known alternate field
// paths are tried in order and the first hit wins.
func (r Record) First(paths ...string) (any, bool) {
	for _, p := range paths {
		if v, ok := r.Lookup(p); ok {
			return v, true
		}
	}
	return nil, false
}

// StringAt coalesces paths and coerces the winner to a string.
// Numbers and booleans are formatted the way the warehouse stores them;
// strings are normalized to NFC so identical identifiers hash and group
// identically regardless of the source encoding form.
func (r Record) StringAt(paths ...string) *string {
	v, ok := r.First(paths...)
	if !ok {
		return nil
	}
	var s string
	switch val := v.(type) {
	case string:
		s = norm.NFC.String(val)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(val)
	default:
		return nil
	}
	return &s
}

// StringOr is StringAt with a default for fields that must never be null,
// such as status columns.
func (r Record) StringOr(fallback string, paths ...string) string {
	if s := r.StringAt(paths...); s != nil {
		return *s
	}
	return fallback
}

// FloatAt coalesces paths and coerces the winner to a float64.
// Accepts JSON numbers and numeric strings; anything else is nil.
func (r Record) FloatAt(paths ...string) *float64 {
	v, ok := r.First(paths...)
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// timestampLayouts are tried in order when parsing timestamp strings.
// The API nominally emits RFC 3339, but records sourced from older tenant
// databases drop the zone or the time entirely.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TimeAt coalesces paths and parses the winner as a timestamp in UTC.
func (r Record) TimeAt(paths ...string) *time.Time {
	v, ok := r.First(paths...)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return ParseTime(s)
}

// DateAt coalesces paths and parses the winner as a calendar date,
// truncating any time-of-day component. The result is midnight UTC.
func (r Record) DateAt(paths ...string) *time.Time {
	t := r.TimeAt(paths...)
	if t == nil {
		return nil
	}
	d := Midnight(*t)
	return &d
}

// ParseTime parses a timestamp string, trying the known layouts in order.
// Returns nil when no layout matches.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// Midnight truncates a timestamp to its UTC calendar date.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
