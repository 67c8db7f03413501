package scraper

import (
	"fmt"
	"strconv"
	"strings"

	errs "hemnetscraper/pkg/errors"
)

// RawRecord is one entry of the embedded state graph: field name to
// JSON-decoded value (scalar, nested object, or a {"__ref": "Type:ID"}
// reference).
type RawRecord map[string]any

// value returns the raw value for a required key. A key that is present
// but null is valid; a key that is absent is a hard extraction failure.
func (r RawRecord) value(key string) (any, error) {
	v, ok := r[key]
	if !ok {
		return nil, errs.NewMissingFieldError("listing", key)
	}
	return v, nil
}

// optString reads a required key holding a nullable string.
func (r RawRecord) optString(key string) (*string, error) {
	v, err := r.value(key)
	if err != nil || v == nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, errs.NewParsingError("listing", fmt.Sprintf("field %q is not a string", key), nil)
	}
	return &s, nil
}

// optInt reads a required key holding a nullable numeric value. Zero is
// treated as absent, matching the source's falsiness semantics.
func (r RawRecord) optInt(key string) (*int64, error) {
	v, err := r.value(key)
	if err != nil || v == nil {
		return nil, err
	}
	if !truthy(v) {
		return nil, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, errs.NewParsingError("listing", fmt.Sprintf("field %q", key), err)
	}
	return &n, nil
}

// boolField reads a required boolean flag. Null collapses to false.
func (r RawRecord) boolField(key string) (bool, error) {
	v, err := r.value(key)
	if err != nil || v == nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errs.NewParsingError("listing", fmt.Sprintf("field %q is not a boolean", key), nil)
	}
	return b, nil
}

// nested reads a required key holding a nullable object.
func (r RawRecord) nested(key string) (RawRecord, error) {
	v, err := r.value(key)
	if err != nil || v == nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errs.NewParsingError("listing", fmt.Sprintf("field %q is not an object", key), nil)
	}
	return RawRecord(m), nil
}

// nestedString reads field key.sub where the outer object must not be
// null (e.g. tenure.name, housingForm.name).
func (r RawRecord) nestedString(key, sub string) (string, error) {
	m, err := r.nested(key)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", errs.NewParsingError("listing", fmt.Sprintf("field %q is null", key), nil)
	}
	v, ok := m[sub]
	if !ok {
		return "", errs.NewMissingFieldError("listing", key+"."+sub)
	}
	s, ok := v.(string)
	if !ok {
		return "", errs.NewParsingError("listing", fmt.Sprintf("field %q is not a string", key+"."+sub), nil)
	}
	return s, nil
}

// amount unwraps a nullable monetary sub-object {"amount": N} to its
// integer amount.
func (r RawRecord) amount(key string) (*int64, error) {
	m, err := r.nested(key)
	if err != nil || m == nil {
		return nil, err
	}
	v, ok := m["amount"]
	if !ok {
		return nil, errs.NewMissingFieldError("listing", key+".amount")
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, errs.NewParsingError("listing", fmt.Sprintf("field %q", key+".amount"), err)
	}
	return &n, nil
}

// formattedAmount parses a nullable {"formatted": "12 000 kr"} sub-object
// into an integer amount. Tolerates regular and non-breaking spaces as
// grouping separators.
func (r RawRecord) formattedAmount(key string) (*int64, error) {
	m, err := r.nested(key)
	if err != nil || m == nil {
		return nil, err
	}
	v, ok := m["formatted"]
	if !ok {
		return nil, errs.NewMissingFieldError("listing", key+".formatted")
	}
	s, ok := v.(string)
	if !ok {
		return nil, errs.NewParsingError("listing", fmt.Sprintf("field %q is not a string", key+".formatted"), nil)
	}
	n, err := parseFormattedCurrency(s)
	if err != nil {
		return nil, errs.NewParsingError("listing", fmt.Sprintf("field %q", key+".formatted"), err)
	}
	return &n, nil
}

// parseFormattedCurrency strips the "kr" suffix and all whitespace and
// grouping separators, then parses the remaining integer.
func parseFormattedCurrency(s string) (int64, error) {
	s = strings.Trim(s, "kr")
	s = strings.Join(strings.Fields(s), "")
	return strconv.ParseInt(s, 10, 64)
}

// toInt64 coerces a JSON scalar to an integer. Floats truncate toward
// zero; strings must be integral.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}

// toFloat64 coerces a JSON scalar to a float.
func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}

// truthy mirrors the source's falsiness rules for JSON scalars.
func truthy(v any) bool {
	switch n := v.(type) {
	case nil:
		return false
	case float64:
		return n != 0
	case string:
		return n != ""
	case bool:
		return n
	default:
		return true
	}
}
