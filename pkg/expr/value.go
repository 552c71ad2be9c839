package expr

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// UndefinedType is the type of Undefined.
type UndefinedType struct{}

// Undefined is the JS undefined value. Evaluate returns it on any failure.
var Undefined = UndefinedType{}

// IsUndefined reports whether v is Undefined.
func IsUndefined(v any) bool {
	_, ok := v.(UndefinedType)
	return ok
}

// Func is a callable value. Functions are only reachable when they are
// already present in the evaluation scope.
type Func func(args ...any) (any, error)

// Fielder is implemented by structured values that expose named fields to
// member access, such as state.RangeValue.
type Fielder interface {
	Field(name string) (any, bool)
}

// Env resolves identifiers.
type Env interface {
	Lookup(name string) (any, bool)
}

// Assigner is an Env that accepts assignment to identifiers. Plain
// expression evaluation never gets one.
type Assigner interface {
	Env
	Assign(name string, value any) error
}

// MapEnv is an Env backed by a map.
type MapEnv map[string]any

func (m MapEnv) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case []string:
		out := make([]any, len(n))
		for i, s := range n {
			out[i] = s
		}
		return out
	case func(args ...any) (any, error):
		return Func(n)
	}
	return v
}

// Truthy applies JS truthiness.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil, UndefinedType:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	}
	return true
}

// ToNumber applies JS numeric conversion.
func ToNumber(v any) float64 {
	switch t := normalize(v).(type) {
	case nil:
		return 0
	case UndefinedType:
		return math.NaN()
	case bool:
		if t {
			return 1
		}
		return 0
	case float64:
		return t
	case string:
		return stringToNumber(t)
	case []any:
		return stringToNumber(ToString(t))
	}
	return math.NaN()
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if n, err := strconv.ParseInt(s[2:], 16, 64); err == nil {
			return float64(n)
		}
		return math.NaN()
	}
	if strings.ContainsAny(s, "iInN_") {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// ToString applies JS string conversion.
func ToString(v any) string {
	switch t := normalize(v).(type) {
	case nil:
		return "null"
	case UndefinedType:
		return "undefined"
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			if item == nil || IsUndefined(item) {
				continue
			}
			parts[i] = ToString(item)
		}
		return strings.Join(parts, ",")
	case Func:
		return "function"
	}
	return "[object Object]"
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// Go writes 1e+06 style exponents, JS writes 1e+6
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		exp = strings.TrimLeft(exp[1:], "0")
		return mant + "e" + sign + exp
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// TypeOf returns the JS typeof string for v.
func TypeOf(v any) string {
	switch normalize(v).(type) {
	case UndefinedType:
		return "undefined"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case Func:
		return "function"
	}
	return "object"
}

// StrictEquals implements ===. Arrays and objects compare by identity.
func StrictEquals(a, b any) bool {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case nil:
		return b == nil
	case UndefinedType:
		return IsUndefined(b)
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []any, map[string]any:
		return sameReference(a, b)
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b) && reflect.DeepEqual(a, b)
}

func sameReference(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != vb.Kind() {
		return false
	}
	if va.Kind() == reflect.Slice && va.Len() != vb.Len() {
		return false
	}
	return va.Pointer() == vb.Pointer()
}

// LooseEquals implements ==.
func LooseEquals(a, b any) bool {
	a, b = normalize(a), normalize(b)
	if isNullish(a) || isNullish(b) {
		return isNullish(a) && isNullish(b)
	}
	if TypeOf(a) == TypeOf(b) {
		return StrictEquals(a, b)
	}
	if _, ok := a.(bool); ok {
		return LooseEquals(ToNumber(a), b)
	}
	if _, ok := b.(bool); ok {
		return LooseEquals(a, ToNumber(b))
	}
	_, an := a.(float64)
	_, bn := b.(float64)
	_, as := a.(string)
	_, bs := b.(string)
	switch {
	case an && bs, as && bn:
		return ToNumber(a) == ToNumber(b)
	case isPrimitive(a) && !isPrimitive(b):
		return LooseEquals(a, ToString(b))
	case !isPrimitive(a) && isPrimitive(b):
		return LooseEquals(ToString(a), b)
	}
	return false
}

func isNullish(v any) bool {
	return v == nil || IsUndefined(v)
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, UndefinedType, bool, float64, string:
		return true
	}
	return false
}

func toPrimitive(v any) any {
	if isPrimitive(v) {
		return v
	}
	return ToString(v)
}

func toInt32(v any) int32 {
	f := ToNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Trunc(f))))
}
