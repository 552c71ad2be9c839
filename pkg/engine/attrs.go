package engine

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/expr"
	"github.com/jwebster45206/campfire/pkg/state"
)

var labelAssign = regexp.MustCompile(`^\s*([A-Za-z_$][\w$]*(?:\.[\w$]+)*)\s*=\s*([^=].*)$`)

// assignment is one key/raw-value pair a set-like directive writes.
type assignment struct {
	key string
	raw string
}

// targetKey returns the state path a directive operates on: the label, or
// the key attribute.
func targetKey(n *directive.Node) string {
	if label := n.LabelText(); label != "" {
		return label
	}
	if key, ok := n.Attributes.Get("key"); ok {
		return strings.TrimSpace(state.Unquote(key))
	}
	return ""
}

// assignments reads `:set[key]{value=...}`, `:set[key = expr]`,
// `:set{key=k value=...}` and `:set{a=1 b=2}` forms.
func assignments(n *directive.Node) []assignment {
	label := n.LabelText()
	if label != "" {
		if m := labelAssign.FindStringSubmatch(label); m != nil && !n.Attributes.Has("value") {
			return []assignment{{key: m[1], raw: m[2]}}
		}
		if raw, ok := n.Attributes.Get("value"); ok {
			return []assignment{{key: label, raw: raw}}
		}
		return nil
	}
	if key, ok := n.Attributes.Get("key"); ok {
		raw, ok := n.Attributes.Get("value")
		if !ok {
			return nil
		}
		return []assignment{{key: strings.TrimSpace(state.Unquote(key)), raw: raw}}
	}
	out := make([]assignment, 0, len(n.Attributes))
	for _, attr := range n.Attributes {
		out = append(out, assignment{key: attr.Key, raw: attr.Value})
	}
	return out
}

// resolve turns a raw attribute into a value. Quoted text and literals
// coerce; anything else is an expression, falling back to the raw text when
// it evaluates to undefined.
func (f *frame) resolve(raw string) any {
	s := strings.TrimSpace(raw)
	switch {
	case state.IsQuoted(s):
		return state.Unquote(s)
	case strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{"):
		if json.Valid([]byte(s)) {
			return state.ParseTypedValue(s)
		}
		if v := f.eval(s); !expr.IsUndefined(v) {
			return fromExpr(v)
		}
		return state.ParseTypedValue(s)
	case state.IsLiteral(s):
		return state.ParseTypedValue(s)
	}
	if v := f.eval(s); !expr.IsUndefined(v) {
		return fromExpr(v)
	}
	return s
}

// fromExpr converts an expression result into a storable value.
func fromExpr(v any) any {
	switch t := v.(type) {
	case expr.UndefinedType:
		return nil
	case expr.Func:
		return nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = fromExpr(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = fromExpr(item)
		}
		return state.Normalize(out)
	}
	return state.Normalize(v)
}

// number resolves a raw attribute as a number.
func (f *frame) number(raw string) (float64, bool) {
	v := f.resolve(raw)
	if r, ok := v.(state.RangeValue); ok {
		return r.Value, true
	}
	n := expr.ToNumber(v)
	if math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

func (f *frame) numberAttr(n *directive.Node, key string) (float64, bool, bool) {
	raw, ok := n.Attributes.Get(key)
	if !ok {
		return 0, false, true
	}
	v, valid := f.number(raw)
	return v, true, valid
}

// asList coerces a resolved value into array items. Plain strings are
// split on top-level commas.
func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case nil:
		return []any{}
	case string:
		if strings.TrimSpace(t) == "" {
			return []any{}
		}
		parts := state.SplitTopLevel(t, ',')
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, state.ParseTypedValue(p))
		}
		return out
	}
	return []any{v}
}
