package state

import (
	"sort"
	"strings"
)

// SplitPath splits a dot path into its segments, dropping empty ones.
func SplitPath(path string) []string {
	parts := strings.Split(path, ".")
	segs := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// TopKey returns the first segment of a dot path.
func TopKey(path string) string {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return ""
	}
	return segs[0]
}

func joinPath(segs []string) string {
	return strings.Join(segs, ".")
}

// isWithin reports whether path equals root or lives underneath it.
func isWithin(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+".")
}

// Normalize converts Go values into the store's canonical JSON-like shape:
// every number becomes float64, typed maps and slices become map[string]any
// and []any, and {min,max,value} objects become RangeValues.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil, bool, string, float64, RangeValue:
		return t
	case *RangeValue:
		if t == nil {
			return nil
		}
		return *t
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	case map[string]any:
		if r, ok := asRange(t); ok {
			return r
		}
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Normalize(item)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = item
		}
		return out
	}
	return v
}

func asRange(m map[string]any) (RangeValue, bool) {
	if len(m) != 3 {
		return RangeValue{}, false
	}
	min, ok1 := number(m["min"])
	max, ok2 := number(m["max"])
	val, ok3 := number(m["value"])
	if !ok1 || !ok2 || !ok3 {
		return RangeValue{}, false
	}
	return NewRange(min, max, val), true
}

func number(v any) (float64, bool) {
	switch n := Normalize(v).(type) {
	case float64:
		return n, true
	}
	return 0, false
}

// DeepCopy returns a structural clone of a normalized value.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = DeepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = DeepCopy(item)
		}
		return out
	}
	return v
}

func copyData(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return DeepCopy(m).(map[string]any)
}

func copySet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		if v {
			out[k] = true
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
