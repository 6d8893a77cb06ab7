package state

import "time"

// Clone returns a structural deep copy of a JSON-like value.
// Maps and sequences are copied recursively; primitives and time.Time
// are value types and pass through. Cyclic values are not supported.
func Clone(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = Clone(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = Clone(item)
		}
		return out
	case time.Time:
		return v
	default:
		return v
	}
}

// CloneMap deep-copies a map document. A nil input yields an empty map.
func CloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}
