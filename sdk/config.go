package sdk

import "time"

// Typed accessors over JSON-decoded config and payload maps.

// StringValue reads a string field.
func StringValue(m map[string]interface{}, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// NumberValue reads a numeric field. JSON numbers decode as float64;
// native ints from Go callers are accepted too.
func NumberValue(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// BoolValue reads a boolean field.
func BoolValue(m map[string]interface{}, key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// MapValue reads a nested map field.
func MapValue(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	mm, ok := v.(map[string]interface{})
	return mm, ok
}

// SliceValue reads a sequence field.
func SliceValue(m map[string]interface{}, key string) ([]interface{}, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	s, ok := v.([]interface{})
	return s, ok
}

// DurationMS reads a millisecond count into a duration.
func DurationMS(m map[string]interface{}, key string) (time.Duration, bool) {
	n, ok := NumberValue(m, key)
	if !ok {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}
