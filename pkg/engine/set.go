package engine

import (
	"math"
	"strings"

	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/state"
)

func isOnce(n *directive.Node) bool {
	return strings.HasSuffix(n.Name, "Once")
}

func handleSet(f *frame, n *directive.Node) directive.Result {
	pairs := assignments(n)
	if len(pairs) == 0 {
		f.fail(Malformed, n, "%s requires a key and a value", n.Name)
		return directive.Remove()
	}
	for _, a := range pairs {
		if a.key == "" {
			f.fail(Malformed, n, "%s requires a key", n.Name)
			continue
		}
		f.store.SetValue(a.key, f.resolve(a.raw), state.LockIf(isOnce(n)))
	}
	return directive.Remove()
}

func handleArray(f *frame, n *directive.Node) directive.Result {
	pairs := assignments(n)
	if len(pairs) == 0 {
		f.fail(Malformed, n, "%s requires a key and a value", n.Name)
		return directive.Remove()
	}
	for _, a := range pairs {
		if a.key == "" {
			f.fail(Malformed, n, "%s requires a key", n.Name)
			continue
		}
		f.store.SetValue(a.key, asList(f.resolve(a.raw)), state.LockIf(isOnce(n)))
	}
	return directive.Remove()
}

func handleCreateRange(f *frame, n *directive.Node) directive.Result {
	key := targetKey(n)
	if key == "" {
		f.fail(Malformed, n, "createRange requires a key")
		return directive.Remove()
	}
	lo, hasMin, okMin := f.numberAttr(n, "min")
	hi, hasMax, okMax := f.numberAttr(n, "max")
	if !hasMin || !hasMax || !okMin || !okMax {
		f.fail(Malformed, n, "createRange %s requires numeric min and max", key)
		return directive.Remove()
	}
	value, hasValue, okValue := f.numberAttr(n, "value")
	if hasValue && !okValue {
		f.fail(Malformed, n, "createRange %s has a non-numeric value", key)
		return directive.Remove()
	}
	if !hasValue {
		value = math.Min(lo, hi)
	}
	f.store.SetRange(key, lo, hi, value)
	return directive.Remove()
}

// handleSetRange updates an existing range, or creates one when bounds are
// given.
func handleSetRange(f *frame, n *directive.Node) directive.Result {
	key := targetKey(n)
	if key == "" {
		f.fail(Malformed, n, "setRange requires a key")
		return directive.Remove()
	}
	cur, ok := f.store.GetValue(key)
	existing, isRange := cur.(state.RangeValue)
	if !ok || !isRange {
		if n.Attributes.Has("min") && n.Attributes.Has("max") {
			return handleCreateRange(f, n)
		}
		f.fail(Malformed, n, "setRange %s requires an existing range or min and max", key)
		return directive.Remove()
	}

	lo, hi, value := existing.Min, existing.Max, existing.Value
	for _, field := range []struct {
		name string
		dst  *float64
	}{{"min", &lo}, {"max", &hi}, {"value", &value}} {
		v, present, valid := f.numberAttr(n, field.name)
		if !present {
			continue
		}
		if !valid {
			f.fail(Malformed, n, "setRange %s has a non-numeric %s", key, field.name)
			return directive.Remove()
		}
		*field.dst = v
	}
	f.store.SetRange(key, lo, hi, value)
	return directive.Remove()
}

// maxSafeInteger is the largest integer a float64 holds exactly.
const maxSafeInteger = 1<<53 - 1

func handleRandom(f *frame, n *directive.Node) directive.Result {
	key := targetKey(n)
	if key == "" {
		f.fail(Malformed, n, "%s requires a key", n.Name)
		return directive.Remove()
	}
	lock := isOnce(n)
	if f.store.IsLocked(key) {
		return directive.Remove()
	}

	var value any
	if raw, ok := n.Attributes.Get("options"); ok {
		options := asList(f.resolve(raw))
		if len(options) == 0 {
			f.fail(Malformed, n, "%s %s has no options", n.Name, key)
			return directive.Remove()
		}
		value = options[f.eng.rand.IntN(len(options))]
	} else {
		lo, hasMin, okMin := f.numberAttr(n, "min")
		hi, hasMax, okMax := f.numberAttr(n, "max")
		if !hasMin || !hasMax || !okMin || !okMax {
			f.fail(Malformed, n, "%s %s requires numeric min and max, or options", n.Name, key)
			return directive.Remove()
		}
		l, h := math.Ceil(math.Min(lo, hi)), math.Floor(math.Max(lo, hi))
		if math.Abs(l) > maxSafeInteger || math.Abs(h) > maxSafeInteger {
			f.fail(Malformed, n, "%s %s bounds must be within ±%d", n.Name, key, int64(maxSafeInteger))
			return directive.Remove()
		}
		if h < l {
			f.fail(Malformed, n, "%s %s has no integer between min and max", n.Name, key)
			return directive.Remove()
		}
		value = float64(int64(l) + f.eng.rand.Int64N(int64(h-l)+1))
	}
	f.store.SetValue(key, value, state.LockIf(lock))
	return directive.Remove()
}

func handleUnset(f *frame, n *directive.Node) directive.Result {
	var keys []string
	if key := targetKey(n); key != "" {
		keys = append(keys, key)
	} else {
		for _, attr := range n.Attributes {
			keys = append(keys, attr.Key)
		}
	}
	if len(keys) == 0 {
		f.fail(Malformed, n, "unset requires a key")
		return directive.Remove()
	}
	for _, k := range keys {
		f.store.UnsetValue(k)
	}
	return directive.Remove()
}
