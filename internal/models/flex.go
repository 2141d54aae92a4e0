package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexString is a JSON value that may be encoded either as a string or as a
// number. Schedule exports are not consistent about quoting identifiers and
// capacities, so both forms decode to the same text. Booleans decode to their
// literal; objects, arrays and null decode to the empty string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler and never fails
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = ""
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*f = FlexString(s)
		}
	case 't', 'f':
		*f = FlexString(data)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err == nil {
			*f = FlexString(n.String())
		}
	}
	return nil
}

// String returns the underlying text
func (f FlexString) String() string {
	return string(f)
}

// FlexInt is an integer that also accepts floats (truncated) and numeric
// strings. Anything else decodes to zero.
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler and never fails
func (i *FlexInt) UnmarshalJSON(data []byte) error {
	var text FlexString
	_ = text.UnmarshalJSON(data)
	*i = FlexInt(parseInt(strings.TrimSpace(text.String())))
	return nil
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

// isObject reports whether raw holds a JSON object
func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// isArray reports whether raw holds a JSON array
func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// decodeObjectMap decodes a JSON object into a map of lenient values. Any
// other JSON type yields an empty map.
func decodeObjectMap[V any](raw json.RawMessage) map[string]V {
	m := map[string]V{}
	if !isObject(raw) {
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]V{}
	}
	return m
}

func trimmed(f FlexString) string {
	return strings.TrimSpace(f.String())
}

func formatID(i FlexInt) string {
	return strconv.FormatInt(int64(i), 10)
}
