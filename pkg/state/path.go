package state

import "strconv"

// getIn walks segs from cur. Missing segments report false.
func getIn(cur any, segs []string) (any, bool) {
	for _, seg := range segs {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		case RangeValue:
			v, ok := c.Field(seg)
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// setIn writes value at segs below cur, creating intermediate objects, and
// returns the updated container. Range values clamp on every write.
func setIn(cur any, segs []string, value any) (any, bool) {
	if len(segs) == 0 {
		return mergeRange(cur, value), true
	}
	seg := segs[0]
	switch c := cur.(type) {
	case map[string]any:
		next, ok := setIn(c[seg], segs[1:], value)
		if !ok {
			return cur, false
		}
		c[seg] = next
		return c, true
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx > len(c) {
			return cur, false
		}
		if idx == len(c) {
			c = append(c, nil)
		}
		next, ok := setIn(c[idx], segs[1:], value)
		if !ok {
			return cur, false
		}
		c[idx] = next
		return c, true
	case RangeValue:
		if len(segs) != 1 {
			return cur, false
		}
		n, ok := number(value)
		if !ok {
			return cur, false
		}
		switch seg {
		case "value":
			return c.WithValue(n), true
		case "min":
			return NewRange(n, c.Max, c.Value), true
		case "max":
			return NewRange(c.Min, n, c.Value), true
		}
		return cur, false
	}
	return setIn(map[string]any{}, segs, value)
}

// mergeRange keeps an existing range's bounds when a plain number lands on it.
func mergeRange(existing, value any) any {
	if r, ok := value.(RangeValue); ok {
		return NewRange(r.Min, r.Max, r.Value)
	}
	if r, ok := existing.(RangeValue); ok {
		if n, ok := value.(float64); ok {
			return r.WithValue(n)
		}
	}
	return value
}

// unsetIn removes the value at segs below cur.
func unsetIn(cur any, segs []string) (any, bool) {
	if len(segs) == 0 {
		return cur, false
	}
	seg := segs[0]
	switch c := cur.(type) {
	case map[string]any:
		if len(segs) == 1 {
			_, ok := c[seg]
			delete(c, seg)
			return c, ok
		}
		child, ok := c[seg]
		if !ok {
			return c, false
		}
		next, ok := unsetIn(child, segs[1:])
		if ok {
			c[seg] = next
		}
		return c, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(c) {
			return c, false
		}
		if len(segs) == 1 {
			out := make([]any, 0, len(c)-1)
			out = append(out, c[:idx]...)
			return append(out, c[idx+1:]...), true
		}
		next, ok := unsetIn(c[idx], segs[1:])
		if ok {
			c[idx] = next
		}
		return c, ok
	}
	return cur, false
}
