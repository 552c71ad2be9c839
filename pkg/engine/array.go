package engine

import (
	"math"

	"github.com/jwebster45206/campfire/pkg/directive"
)

// currentArray reads key as an array. A missing key is an empty array.
func (f *frame) currentArray(n *directive.Node, key string) ([]any, bool) {
	v, ok := f.store.GetValue(key)
	if !ok || v == nil {
		return []any{}, true
	}
	arr, isArray := v.([]any)
	if !isArray {
		f.fail(Malformed, n, "%s: %s is not an array", n.Name, key)
		return nil, false
	}
	return arr, true
}

// writable reports whether every path can be written. Multi-step array
// operations check before their first write so they apply fully or not at
// all.
func (f *frame) writable(paths ...string) bool {
	for _, p := range paths {
		if p != "" && f.store.IsLocked(p) {
			return false
		}
	}
	return true
}

// items resolves the values a push-like directive adds: every element of
// `items`, or the single `value`.
func (f *frame) items(n *directive.Node) ([]any, bool) {
	if raw, ok := n.Attributes.Get("items"); ok {
		return asList(f.resolve(raw)), true
	}
	if raw, ok := n.Attributes.Get("value"); ok {
		return []any{f.resolve(raw)}, true
	}
	return nil, false
}

func handlePush(f *frame, n *directive.Node) directive.Result {
	key := targetKey(n)
	add, ok := f.items(n)
	if key == "" || !ok {
		f.fail(Malformed, n, "%s requires a key and a value", n.Name)
		return directive.Remove()
	}
	if !f.writable(key) {
		return directive.Remove()
	}
	arr, ok := f.currentArray(n, key)
	if !ok {
		return directive.Remove()
	}
	var next []any
	if directive.KindOf(n.Name) == directive.KindUnshift {
		next = append(append([]any{}, add...), arr...)
	} else {
		next = append(arr, add...)
	}
	f.store.SetValue(key, next)
	return directive.Remove()
}

// handlePop covers pop and shift. The removed item optionally lands in the
// `into` path.
func handlePop(f *frame, n *directive.Node) directive.Result {
	key := targetKey(n)
	if key == "" {
		f.fail(Malformed, n, "%s requires a key", n.Name)
		return directive.Remove()
	}
	into, _ := n.Attributes.Get("into")
	if !f.writable(key, into) {
		return directive.Remove()
	}
	arr, ok := f.currentArray(n, key)
	if !ok || len(arr) == 0 {
		return directive.Remove()
	}
	var item any
	var rest []any
	if directive.KindOf(n.Name) == directive.KindShift {
		item, rest = arr[0], arr[1:]
	} else {
		item, rest = arr[len(arr)-1], arr[:len(arr)-1]
	}
	f.store.SetValue(key, rest)
	if into != "" {
		f.store.SetValue(into, item)
	}
	return directive.Remove()
}

func handleSplice(f *frame, n *directive.Node) directive.Result {
	key := targetKey(n)
	if key == "" {
		f.fail(Malformed, n, "splice requires a key")
		return directive.Remove()
	}
	into, _ := n.Attributes.Get("into")
	if !f.writable(key, into) {
		return directive.Remove()
	}
	arr, ok := f.currentArray(n, key)
	if !ok {
		return directive.Remove()
	}

	start, present, valid := f.numberAttr(n, "index")
	if !present || !valid {
		f.fail(Malformed, n, "splice %s requires a numeric index", key)
		return directive.Remove()
	}
	count := float64(len(arr))
	if c, present, valid := f.numberAttr(n, "count"); present {
		if !valid {
			f.fail(Malformed, n, "splice %s has a non-numeric count", key)
			return directive.Remove()
		}
		count = c
	}
	var add []any
	if raw, ok := n.Attributes.Get("value"); ok {
		add = asList(f.resolve(raw))
	}

	lo := spliceIndex(start, len(arr))
	hi := lo + int(math.Max(0, math.Min(math.Trunc(count), float64(len(arr)-lo))))
	removed := append([]any{}, arr[lo:hi]...)
	next := make([]any, 0, len(arr)-len(removed)+len(add))
	next = append(next, arr[:lo]...)
	next = append(next, add...)
	next = append(next, arr[hi:]...)

	f.store.SetValue(key, next)
	if into != "" {
		f.store.SetValue(into, removed)
	}
	return directive.Remove()
}

// spliceIndex resolves a JS splice start against length n.
func spliceIndex(start float64, n int) int {
	if math.IsNaN(start) {
		return 0
	}
	i := math.Trunc(start)
	if i < 0 {
		i = math.Max(0, float64(n)+i)
	}
	return int(math.Min(i, float64(n)))
}

func handleConcat(f *frame, n *directive.Node) directive.Result {
	key := targetKey(n)
	raw, ok := n.Attributes.Get("value")
	if key == "" || !ok {
		f.fail(Malformed, n, "concat requires a key and a value")
		return directive.Remove()
	}
	if !f.writable(key) {
		return directive.Remove()
	}
	arr, ok := f.currentArray(n, key)
	if !ok {
		return directive.Remove()
	}
	next := append(append([]any{}, arr...), asList(f.resolve(raw))...)
	f.store.SetValue(key, next)
	return directive.Remove()
}
