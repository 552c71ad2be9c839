package expr

import (
	"math"
	"strings"
)

type method func(recv any, args []any) (any, error)

var stringMethods = map[string]func(s string, args []any) any{
	"includes": func(s string, args []any) any {
		return strings.Contains(s, argString(args, 0))
	},
	"indexOf": func(s string, args []any) any {
		i := strings.Index(s, argString(args, 0))
		if i < 0 {
			return float64(-1)
		}
		return float64(len([]rune(s[:i])))
	},
	"startsWith": func(s string, args []any) any {
		return strings.HasPrefix(s, argString(args, 0))
	},
	"endsWith": func(s string, args []any) any {
		return strings.HasSuffix(s, argString(args, 0))
	},
	"toUpperCase": func(s string, _ []any) any { return strings.ToUpper(s) },
	"toLowerCase": func(s string, _ []any) any { return strings.ToLower(s) },
	"trim":        func(s string, _ []any) any { return strings.TrimSpace(s) },
	"charAt": func(s string, args []any) any {
		runes := []rune(s)
		i := int(ToNumber(arg(args, 0, 0.0)))
		if i < 0 || i >= len(runes) {
			return ""
		}
		return string(runes[i])
	},
	"slice": func(s string, args []any) any {
		runes := []rune(s)
		lo, hi := sliceBounds(len(runes), args)
		return string(runes[lo:hi])
	},
	"split": func(s string, args []any) any {
		if len(args) == 0 || IsUndefined(args[0]) {
			return []any{s}
		}
		parts := strings.Split(s, ToString(args[0]))
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out
	},
	"toString": func(s string, _ []any) any { return s },
}

var arrayMethods = map[string]func(a []any, args []any) any{
	"includes": func(a []any, args []any) any {
		return indexOf(a, arg(args, 0, Undefined)) >= 0
	},
	"indexOf": func(a []any, args []any) any {
		return float64(indexOf(a, arg(args, 0, Undefined)))
	},
	"join": func(a []any, args []any) any {
		sep := ","
		if len(args) > 0 && !IsUndefined(args[0]) {
			sep = ToString(args[0])
		}
		parts := make([]string, len(a))
		for i, item := range a {
			if !isNullish(item) {
				parts[i] = ToString(item)
			}
		}
		return strings.Join(parts, sep)
	},
	"slice": func(a []any, args []any) any {
		lo, hi := sliceBounds(len(a), args)
		out := make([]any, hi-lo)
		copy(out, a[lo:hi])
		return out
	},
	"concat": func(a []any, args []any) any {
		out := append([]any{}, a...)
		for _, v := range args {
			if items, ok := v.([]any); ok {
				out = append(out, items...)
			} else {
				out = append(out, v)
			}
		}
		return out
	},
	"toString": func(a []any, _ []any) any { return ToString(a) },
}

func lookupMethod(recv any, name string) (method, bool) {
	switch recv.(type) {
	case string:
		m, ok := stringMethods[name]
		if !ok {
			return nil, false
		}
		return func(r any, args []any) (any, error) { return m(r.(string), args), nil }, true
	case []any:
		m, ok := arrayMethods[name]
		if !ok {
			return nil, false
		}
		return func(r any, args []any) (any, error) { return m(r.([]any), args), nil }, true
	}
	return nil, false
}

func arg(args []any, i int, def any) any {
	if i < len(args) {
		return args[i]
	}
	return def
}

func argString(args []any, i int) string {
	return ToString(arg(args, i, Undefined))
}

func indexOf(a []any, v any) int {
	for i, item := range a {
		if StrictEquals(item, v) {
			return i
		}
	}
	return -1
}

// sliceBounds resolves JS slice(start, end) arguments against length n.
func sliceBounds(n int, args []any) (int, int) {
	resolve := func(v any, def int) int {
		if IsUndefined(v) {
			return def
		}
		f := ToNumber(v)
		if math.IsNaN(f) {
			return 0
		}
		i := int(math.Trunc(math.Max(math.Min(f, float64(n)), -float64(n)-1)))
		if i < 0 {
			i += n
			if i < 0 {
				i = 0
			}
		}
		return min(i, n)
	}
	lo := resolve(arg(args, 0, Undefined), 0)
	hi := resolve(arg(args, 1, Undefined), n)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
