package engine

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/expr"
	"github.com/jwebster45206/campfire/pkg/state"
)

var forHeader = regexp.MustCompile(`^\s*([A-Za-z_$][\w$]*)\s+in\s+(\S.*?)\s*$`)

// condition is an if or elseif test.
type condition func(f *frame) bool

// conditionOf derives the test of an if or elseif node: the label is an
// expression; otherwise the first attribute is `key` or `key === value`.
func conditionOf(n *directive.Node) (condition, bool) {
	if label := n.LabelText(); label != "" {
		return func(f *frame) bool { return expr.Truthy(f.eval(label)) }, true
	}
	if len(n.Attributes) == 0 {
		return nil, false
	}
	attr := n.Attributes[0]
	if strings.TrimSpace(attr.Value) == "" {
		return func(f *frame) bool { return expr.Truthy(f.eval(attr.Key)) }, true
	}
	return func(f *frame) bool {
		want := state.ParseTypedValue(attr.Value)
		if !state.IsLiteral(attr.Value) {
			want = state.Unquote(attr.Value)
		}
		return expr.StrictEquals(f.eval(attr.Key), want)
	}, true
}

// branch is one arm of an if block.
type branch struct {
	test  condition // nil for else
	nodes []*directive.Node
}

// branches splits an if body at its else/elseif children. A marker that is a
// container contributes its own body to its arm as well.
func branches(f *frame, n *directive.Node, test condition) []branch {
	arms := []branch{{test: test}}
	sawElse := false
	for _, child := range n.Body() {
		kind := directive.KindOfNode(child)
		if kind != directive.KindElse && kind != directive.KindElseIf {
			last := &arms[len(arms)-1]
			last.nodes = append(last.nodes, child)
			continue
		}
		if sawElse {
			f.fail(Malformed, child, "%s after else", child.Name)
			break
		}
		var arm branch
		if kind == directive.KindElse {
			sawElse = true
		} else {
			t, ok := conditionOf(child)
			if !ok {
				f.fail(Malformed, child, "elseif requires a test")
				t = func(*frame) bool { return false }
			}
			arm.test = t
		}
		if child.Type == directive.TypeContainer {
			arm.nodes = append(arm.nodes, child.Body()...)
		}
		arms = append(arms, arm)
	}
	return arms
}

// handleIf resolves every arm in its own scope so directive errors surface
// whichever arm is taken, then keeps only the chosen arm's output and
// changes.
func handleIf(f *frame, n *directive.Node) directive.Result {
	test, ok := conditionOf(n)
	if !ok {
		f.fail(Malformed, n, "if requires a test")
		return directive.Remove()
	}
	arms := branches(f, n, test)

	type resolved struct {
		frame *frame
		nodes []*directive.Node
	}
	results := make([]resolved, len(arms))
	for i, arm := range arms {
		c := f.child()
		results[i] = resolved{frame: c, nodes: c.walk(directive.CloneAll(arm.nodes))}
	}

	for i, arm := range arms {
		if arm.test == nil || arm.test(f) {
			f.commit(results[i].frame)
			return directive.Replace(results[i].nodes...)
		}
	}
	return directive.Remove()
}

func handleDanglingElse(f *frame, n *directive.Node) directive.Result {
	f.fail(Malformed, n, "%s without a matching if", n.Name)
	return directive.Remove()
}

// handleFor runs the body once per item, each in its own scope with the
// loop variable bound. Merges apply in iteration order and never include
// the loop variable.
func handleFor(f *frame, n *directive.Node) directive.Result {
	header := n.LabelText()
	if header == "" {
		header, _ = n.Attributes.Get("each")
	}
	m := forHeader.FindStringSubmatch(header)
	if m == nil {
		f.fail(Malformed, n, "invalid for loop syntax %q, expected \"item in list\"", header)
		return directive.Remove()
	}
	name, source := m[1], m[2]

	v := f.eval(source)
	count, ok := iterationCount(v)
	if !ok {
		f.fail(Malformed, n, "for loop over %s: value is not iterable", source)
		return directive.Remove()
	}
	if count > float64(f.eng.maxIterations) {
		f.fail(Policy, n, "for loop over %s exceeds %d iterations", source, f.eng.maxIterations)
		return directive.Remove()
	}
	items := iterable(v)

	body := n.Body()
	var out []*directive.Node
	for _, item := range items {
		c := f.child()
		c.store.Bind(name, item)
		out = append(out, c.walk(directive.CloneAll(body))...)
		f.commitWithout(c, name)
	}
	return directive.Replace(out...)
}

// iterationCount reports how many items a loop source yields without
// materializing them.
func iterationCount(v any) (float64, bool) {
	switch t := v.(type) {
	case []any:
		return float64(len(t)), true
	case state.RangeValue:
		return t.Count(), true
	case map[string]any:
		return float64(len(t)), true
	case float64:
		if t < 0 || math.IsInf(t, 0) || t != math.Trunc(t) {
			return 0, false
		}
		return t, true
	case nil:
		return 0, true
	}
	return 0, false
}

// iterable expands a loop source: arrays as is, ranges to their integer
// sequence, objects to their keys and a count n to 0..n-1. Callers check
// iterationCount first.
func iterable(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case state.RangeValue:
		return t.Ints()
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out
	case float64:
		out := make([]any, int(t))
		for i := range out {
			out[i] = float64(i)
		}
		return out
	}
	return []any{}
}

// handleBatch runs the block in one scope restricted to state directives
// and merges it in a single step. A nested batch anywhere inside abandons
// the whole block.
func handleBatch(f *frame, n *directive.Node) directive.Result {
	body := n.Body()
	if containsKind(body, directive.KindBatch) {
		f.fail(Policy, n, "nested batch not allowed")
		return directive.Remove()
	}
	c := f.child()
	c.pure = "batch"
	c.walk(directive.CloneAll(body))
	f.commit(c)
	return directive.Remove()
}

func containsKind(nodes []*directive.Node, kind directive.Kind) bool {
	for _, n := range nodes {
		if directive.KindOfNode(n) == kind || containsKind(n.Children, kind) {
			return true
		}
	}
	return false
}

// handleOnce shows its content the first time its id is seen in the
// session.
func handleOnce(f *frame, n *directive.Node) directive.Result {
	id := n.LabelText()
	if id == "" {
		id, _ = n.Attributes.Get("id")
	}
	if id = strings.TrimSpace(state.Unquote(id)); id == "" {
		f.fail(Malformed, n, "once requires an id")
		return directive.Remove()
	}
	if f.store.HasOnce(id) {
		return directive.Remove()
	}
	out := f.walk(directive.CloneAll(n.Body()))
	f.store.MarkOnce(id)
	return directive.Replace(out...)
}
