package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/expr"
	"github.com/jwebster45206/campfire/pkg/script"
	"github.com/jwebster45206/campfire/pkg/state"
)

// handleEval runs the statements in an eval block. The source is the code
// body of a container, or the label or value of a leaf.
func handleEval(f *frame, n *directive.Node) directive.Result {
	src := strings.TrimSpace(directive.Text(n.Body()))
	if src == "" {
		src = n.LabelText()
	}
	if src == "" {
		if raw, ok := n.Attributes.Get("value"); ok {
			src = strings.TrimSpace(state.Unquote(raw))
		}
	}
	if src == "" {
		return directive.Remove()
	}
	f.runScript(n, src)
	return directive.Remove()
}

// runScript executes src with `game` and `state` bound. Each rejected or
// failing statement is one error; its siblings still run.
func (f *frame) runScript(n *directive.Node, src string) {
	globals := map[string]any{
		"game":  f.store.Data(),
		"state": f.stateAPI(),
	}
	for _, err := range script.Run(src, globals) {
		if errors.Is(err, expr.ErrSyntax) {
			f.fail(Malformed, n, "eval: %v", err)
			continue
		}
		f.fail(Grammar, n, "eval: %v", err)
	}
}

func (f *frame) stateAPI() map[string]any {
	s := f.store
	get := expr.Func(func(args ...any) (any, error) {
		path, err := pathArg("get", args)
		if err != nil {
			return nil, err
		}
		if v, ok := s.GetValue(path); ok {
			return v, nil
		}
		return expr.Undefined, nil
	})
	set := expr.Func(func(args ...any) (any, error) {
		path, err := pathArg("set", args)
		if err != nil {
			return nil, err
		}
		var value any
		if len(args) > 1 {
			value = fromExpr(args[1])
		}
		return s.SetValue(path, value, state.LockIf(lockOption(args))), nil
	})
	unset := expr.Func(func(args ...any) (any, error) {
		path, err := pathArg("unset", args)
		if err != nil {
			return nil, err
		}
		s.UnsetValue(path)
		return expr.Undefined, nil
	})
	return map[string]any{
		"get":        get,
		"getValue":   get,
		"set":        set,
		"setValue":   set,
		"unset":      unset,
		"unsetValue": unset,
		"setOnce": expr.Func(func(args ...any) (any, error) {
			path, err := pathArg("setOnce", args)
			if err != nil {
				return nil, err
			}
			var value any
			if len(args) > 1 {
				value = fromExpr(args[1])
			}
			return s.SetValue(path, value, state.WithLock()), nil
		}),
		"setRange": expr.Func(func(args ...any) (any, error) {
			path, err := pathArg("setRange", args)
			if err != nil {
				return nil, err
			}
			if len(args) < 3 {
				return nil, fmt.Errorf("%w: setRange needs path, min and max", expr.ErrType)
			}
			lo, hi := expr.ToNumber(args[1]), expr.ToNumber(args[2])
			value := lo
			if len(args) > 3 {
				value = expr.ToNumber(args[3])
			}
			return s.SetRange(path, lo, hi, value), nil
		}),
		"isLocked": expr.Func(func(args ...any) (any, error) {
			path, err := pathArg("isLocked", args)
			if err != nil {
				return nil, err
			}
			return s.IsLocked(path), nil
		}),
		"hasOnce": expr.Func(func(args ...any) (any, error) {
			id, err := pathArg("hasOnce", args)
			if err != nil {
				return nil, err
			}
			return s.HasOnce(id), nil
		}),
	}
}

func pathArg(fn string, args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: state.%s needs a path", expr.ErrType, fn)
	}
	path, ok := args[0].(string)
	if !ok || path == "" {
		return "", fmt.Errorf("%w: state.%s path must be a string", expr.ErrType, fn)
	}
	return path, nil
}

// lockOption reads a trailing `{lock: true}` argument.
func lockOption(args []any) bool {
	if len(args) < 3 {
		return false
	}
	opts, ok := args[2].(map[string]any)
	if !ok {
		return false
	}
	return expr.Truthy(opts["lock"])
}
