package state

import "math"

// RangeValue is a bounded number. Value always sits inside [Min, Max].
type RangeValue struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Value float64 `json:"value"`
}

// NewRange builds a RangeValue, swapping inverted bounds and clamping value.
func NewRange(min, max, value float64) RangeValue {
	if min > max {
		min, max = max, min
	}
	return RangeValue{Min: min, Max: max, Value: Clamp(value, min, max)}
}

// WithValue returns a copy of r holding value clamped into r's bounds.
func (r RangeValue) WithValue(value float64) RangeValue {
	return NewRange(r.Min, r.Max, value)
}

// Field exposes min, max and value to expression lookups.
func (r RangeValue) Field(name string) (any, bool) {
	switch name {
	case "min":
		return r.Min, true
	case "max":
		return r.Max, true
	case "value":
		return r.Value, true
	}
	return nil, false
}

// Count is the length of Ints.
func (r RangeValue) Count() float64 {
	lo := math.Ceil(r.Min)
	hi := math.Floor(r.Max)
	if math.IsNaN(lo) || math.IsNaN(hi) || hi < lo {
		return 0
	}
	return hi - lo + 1
}

// Ints returns the inclusive integer sequence ceil(Min)..floor(Max).
// Callers bound Count before expanding.
func (r RangeValue) Ints() []any {
	lo := math.Ceil(r.Min)
	hi := math.Floor(r.Max)
	if r.Count() == 0 {
		return []any{}
	}
	out := make([]any, 0, int(hi-lo)+1)
	for v := lo; v <= hi; v++ {
		out = append(out, v)
	}
	return out
}

// Clamp bounds n to [lo, hi]. NaN clamps to lo.
func Clamp(n, lo, hi float64) float64 {
	if math.IsNaN(n) || n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
