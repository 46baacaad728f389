package cache

import (
	"encoding/json"
	"fmt"
	"math"
)

// Data is a renderer payload. After passing through the cache, numbers are
// json.Number and binary blobs are []byte.
type Data map[string]any

// Bytes returns the byte slice stored under key.
func (d Data) Bytes(key string) ([]byte, error) {
	switch v := d[key].(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case nil:
		return nil, fmt.Errorf("missing field %q", key)
	default:
		return nil, fmt.Errorf("field %q is %T, not bytes", key, v)
	}
}

// String returns the string stored under key, or "" if absent.
func (d Data) String(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the number stored under key.
func (d Data) Float(key string) (float64, error) {
	return toFloat(d[key], key)
}

// Int returns the number stored under key, rounded to the nearest integer.
func (d Data) Int(key string) (int, error) {
	f, err := toFloat(d[key], key)
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}

// Strings returns the string list stored under key.
func (d Data) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

func toFloat(v any, key string) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case nil:
		return 0, fmt.Errorf("missing field %q", key)
	default:
		return 0, fmt.Errorf("field %q is %T, not a number", key, v)
	}
}
