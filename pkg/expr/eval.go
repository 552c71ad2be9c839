// Package expr evaluates a restricted, side-effect-free subset of JavaScript
// expressions against game state. Source text is parsed with the goja parser
// and the resulting AST is walked by a small interpreter; no code is ever
// generated or executed. Identifiers resolve only through the Env passed in.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja/token"
)

var (
	ErrSyntax      = errors.New("syntax error")
	ErrReference   = errors.New("reference error")
	ErrType        = errors.New("type error")
	ErrUnsupported = errors.New("unsupported expression")
)

// errShortCircuit unwinds an optional chain whose base is nullish.
var errShortCircuit = errors.New("optional chain short circuit")

// Evaluate evaluates src against a plain scope map. Any failure yields
// Undefined.
func Evaluate(src string, scope map[string]any) any {
	return EvaluateIn(src, MapEnv(scope))
}

// EvaluateIn is Evaluate for an arbitrary Env.
func EvaluateIn(src string, env Env) any {
	v, err := Eval(src, env)
	if err != nil {
		return Undefined
	}
	return v
}

// Eval evaluates src and reports failures.
func Eval(src string, env Env) (any, error) {
	node, err := Compile(src)
	if err != nil {
		return Undefined, err
	}
	return EvalNode(node, env)
}

// Compile parses src as a single expression.
func Compile(src string) (ast.Expression, error) {
	prog, err := parser.ParseFile(nil, "", "("+src+"\n)", 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if len(prog.Body) != 1 {
		return nil, fmt.Errorf("%w: expected a single expression", ErrSyntax)
	}
	stmt, ok := prog.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return nil, fmt.Errorf("%w: expected an expression", ErrSyntax)
	}
	return stmt.Expression, nil
}

// EvalNode evaluates an already parsed expression. The statement
// interpreter uses it for expressions embedded in statements.
func EvalNode(node ast.Expression, env Env) (any, error) {
	if env == nil {
		env = MapEnv{}
	}
	ev := evaluator{env: env}
	v, err := ev.eval(node)
	if errors.Is(err, errShortCircuit) {
		return Undefined, nil
	}
	if err != nil {
		return Undefined, err
	}
	return v, nil
}

type evaluator struct {
	env Env
}

func (ev *evaluator) eval(node ast.Expression) (any, error) {
	switch n := node.(type) {
	case *ast.NullLiteral:
		return nil, nil
	case *ast.BooleanLiteral:
		return n.Value, nil
	case *ast.NumberLiteral:
		switch v := n.Value.(type) {
		case int64:
			return float64(v), nil
		case float64:
			return v, nil
		}
		return nil, fmt.Errorf("%w: number literal %s", ErrUnsupported, n.Literal)
	case *ast.StringLiteral:
		return n.Value.String(), nil
	case *ast.TemplateLiteral:
		return ev.template(n)
	case *ast.Identifier:
		return ev.identifier(n.Name.String())
	case *ast.ArrayLiteral:
		return ev.array(n)
	case *ast.ObjectLiteral:
		return ev.object(n)
	case *ast.DotExpression:
		obj, err := ev.eval(n.Left)
		if err != nil {
			return nil, err
		}
		return member(obj, n.Identifier.Name.String())
	case *ast.BracketExpression:
		obj, err := ev.eval(n.Left)
		if err != nil {
			return nil, err
		}
		key, err := ev.eval(n.Member)
		if err != nil {
			return nil, err
		}
		return member(obj, propertyKey(key))
	case *ast.OptionalChain:
		v, err := ev.eval(n.Expression)
		if errors.Is(err, errShortCircuit) {
			return Undefined, nil
		}
		return v, err
	case *ast.Optional:
		v, err := ev.eval(n.Expression)
		if err != nil {
			return nil, err
		}
		if isNullish(v) {
			return nil, errShortCircuit
		}
		return v, nil
	case *ast.CallExpression:
		return ev.call(n)
	case *ast.ConditionalExpression:
		test, err := ev.eval(n.Test)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return ev.eval(n.Consequent)
		}
		return ev.eval(n.Alternate)
	case *ast.SequenceExpression:
		var last any = Undefined
		for _, e := range n.Sequence {
			v, err := ev.eval(e)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil
	case *ast.UnaryExpression:
		return ev.unary(n)
	case *ast.BinaryExpression:
		return ev.binary(n)
	case *ast.AssignExpression:
		return ev.assign(n)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupported, node)
}

func (ev *evaluator) identifier(name string) (any, error) {
	if v, ok := ev.env.Lookup(name); ok {
		return normalize(v), nil
	}
	switch name {
	case "undefined":
		return Undefined, nil
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	}
	return nil, fmt.Errorf("%w: %s is not defined", ErrReference, name)
}

func (ev *evaluator) template(n *ast.TemplateLiteral) (any, error) {
	if n.Tag != nil {
		return nil, fmt.Errorf("%w: tagged template", ErrUnsupported)
	}
	var out []byte
	for i, el := range n.Elements {
		out = append(out, el.Parsed.String()...)
		if i < len(n.Expressions) {
			v, err := ev.eval(n.Expressions[i])
			if err != nil {
				return nil, err
			}
			out = append(out, ToString(v)...)
		}
	}
	return string(out), nil
}

func (ev *evaluator) list(exprs []ast.Expression) ([]any, error) {
	out := make([]any, 0, len(exprs))
	for _, e := range exprs {
		if e == nil {
			out = append(out, Undefined)
			continue
		}
		if spread, ok := e.(*ast.SpreadElement); ok {
			v, err := ev.eval(spread.Expression)
			if err != nil {
				return nil, err
			}
			items, err := spreadItems(v)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
			continue
		}
		v, err := ev.eval(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func spreadItems(v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case string:
		items := make([]any, 0, len(t))
		for _, r := range t {
			items = append(items, string(r))
		}
		return items, nil
	}
	return nil, fmt.Errorf("%w: %s is not iterable", ErrType, ToString(v))
}

func (ev *evaluator) array(n *ast.ArrayLiteral) (any, error) {
	return ev.list(n.Value)
}

func (ev *evaluator) object(n *ast.ObjectLiteral) (any, error) {
	out := make(map[string]any, len(n.Value))
	for _, prop := range n.Value {
		switch p := prop.(type) {
		case *ast.PropertyKeyed:
			if p.Kind != ast.PropertyKindValue {
				return nil, fmt.Errorf("%w: accessor property", ErrUnsupported)
			}
			key, err := ev.propertyName(p)
			if err != nil {
				return nil, err
			}
			v, err := ev.eval(p.Value)
			if err != nil {
				return nil, err
			}
			out[key] = v
		case *ast.PropertyShort:
			if p.Initializer != nil {
				return nil, fmt.Errorf("%w: property initializer", ErrUnsupported)
			}
			v, err := ev.identifier(p.Name.Name.String())
			if err != nil {
				return nil, err
			}
			out[p.Name.Name.String()] = v
		case *ast.SpreadElement:
			v, err := ev.eval(p.Expression)
			if err != nil {
				return nil, err
			}
			if m, ok := v.(map[string]any); ok {
				for k, item := range m {
					out[k] = item
				}
			}
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnsupported, prop)
		}
	}
	return out, nil
}

func (ev *evaluator) propertyName(p *ast.PropertyKeyed) (string, error) {
	if p.Computed {
		v, err := ev.eval(p.Key)
		if err != nil {
			return "", err
		}
		return propertyKey(v), nil
	}
	switch k := p.Key.(type) {
	case *ast.StringLiteral:
		return k.Value.String(), nil
	case *ast.Identifier:
		return k.Name.String(), nil
	case *ast.NumberLiteral:
		v, err := ev.eval(k)
		if err != nil {
			return "", err
		}
		return ToString(v), nil
	}
	return "", fmt.Errorf("%w: property key %T", ErrUnsupported, p.Key)
}

func propertyKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ToString(v)
}

// member resolves obj[key].
func member(obj any, key string) (any, error) {
	switch o := obj.(type) {
	case nil, UndefinedType:
		return nil, fmt.Errorf("%w: cannot read properties of %s (reading '%s')", ErrType, ToString(obj), key)
	case map[string]any:
		if v, ok := o[key]; ok {
			return normalize(v), nil
		}
		return Undefined, nil
	case []any:
		if key == "length" {
			return float64(len(o)), nil
		}
		if idx, ok := arrayIndex(key); ok && idx < len(o) {
			return normalize(o[idx]), nil
		}
		return Undefined, nil
	case string:
		runes := []rune(o)
		if key == "length" {
			return float64(len(runes)), nil
		}
		if idx, ok := arrayIndex(key); ok && idx < len(runes) {
			return string(runes[idx]), nil
		}
		return Undefined, nil
	case Fielder:
		if v, ok := o.Field(key); ok {
			return normalize(v), nil
		}
		return Undefined, nil
	}
	return Undefined, nil
}

func arrayIndex(key string) (int, bool) {
	idx, err := strconv.Atoi(key)
	if err != nil || idx < 0 || strconv.Itoa(idx) != key {
		return 0, false
	}
	return idx, true
}

func (ev *evaluator) call(n *ast.CallExpression) (any, error) {
	var (
		fn   any
		recv any
		name string
		err  error
	)
	switch c := n.Callee.(type) {
	case *ast.DotExpression:
		if recv, err = ev.eval(c.Left); err != nil {
			return nil, err
		}
		name = c.Identifier.Name.String()
	case *ast.BracketExpression:
		if recv, err = ev.eval(c.Left); err != nil {
			return nil, err
		}
		key, err := ev.eval(c.Member)
		if err != nil {
			return nil, err
		}
		name = propertyKey(key)
	default:
		if fn, err = ev.eval(n.Callee); err != nil {
			return nil, err
		}
	}

	args, err := ev.list(n.ArgumentList)
	if err != nil {
		return nil, err
	}

	if name != "" {
		if fn, err = member(recv, name); err != nil {
			return nil, err
		}
		if _, ok := fn.(Func); !ok {
			if m, ok := lookupMethod(recv, name); ok {
				return m(recv, args)
			}
			return nil, fmt.Errorf("%w: %s is not a function", ErrType, name)
		}
	}

	f, ok := fn.(Func)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a function", ErrType, ToString(fn))
	}
	v, err := f(args...)
	if err != nil {
		return nil, err
	}
	return normalize(v), nil
}

func (ev *evaluator) unary(n *ast.UnaryExpression) (any, error) {
	switch n.Operator {
	case token.DELETE, token.INCREMENT, token.DECREMENT:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, n.Operator)
	case token.TYPEOF:
		if id, ok := n.Operand.(*ast.Identifier); ok {
			v, err := ev.identifier(id.Name.String())
			if errors.Is(err, ErrReference) {
				return "undefined", nil
			}
			if err != nil {
				return nil, err
			}
			return TypeOf(v), nil
		}
	}

	v, err := ev.eval(n.Operand)
	if err != nil {
		return nil, err
	}
	switch n.Operator {
	case token.TYPEOF:
		return TypeOf(v), nil
	case token.NOT:
		return !Truthy(v), nil
	case token.MINUS:
		return -ToNumber(v), nil
	case token.PLUS:
		return ToNumber(v), nil
	case token.BITWISE_NOT:
		return float64(^toInt32(v)), nil
	case token.VOID:
		return Undefined, nil
	}
	return nil, fmt.Errorf("%w: unary %s", ErrUnsupported, n.Operator)
}

func (ev *evaluator) binary(n *ast.BinaryExpression) (any, error) {
	left, err := ev.eval(n.Left)
	if err != nil {
		return nil, err
	}
	switch n.Operator {
	case token.LOGICAL_AND:
		if !Truthy(left) {
			return left, nil
		}
		return ev.eval(n.Right)
	case token.LOGICAL_OR:
		if Truthy(left) {
			return left, nil
		}
		return ev.eval(n.Right)
	case token.COALESCE:
		if !isNullish(left) {
			return left, nil
		}
		return ev.eval(n.Right)
	}
	right, err := ev.eval(n.Right)
	if err != nil {
		return nil, err
	}
	return applyBinary(n.Operator, left, right)
}

func applyBinary(op token.Token, left, right any) (any, error) {
	switch op {
	case token.PLUS:
		l, r := toPrimitive(left), toPrimitive(right)
		_, ls := l.(string)
		_, rs := r.(string)
		if ls || rs {
			return ToString(l) + ToString(r), nil
		}
		return ToNumber(l) + ToNumber(r), nil
	case token.MINUS:
		return ToNumber(left) - ToNumber(right), nil
	case token.MULTIPLY:
		return ToNumber(left) * ToNumber(right), nil
	case token.SLASH:
		return ToNumber(left) / ToNumber(right), nil
	case token.REMAINDER:
		return math.Mod(ToNumber(left), ToNumber(right)), nil
	case token.EXPONENT:
		return math.Pow(ToNumber(left), ToNumber(right)), nil
	case token.AND:
		return float64(toInt32(left) & toInt32(right)), nil
	case token.OR:
		return float64(toInt32(left) | toInt32(right)), nil
	case token.EXCLUSIVE_OR:
		return float64(toInt32(left) ^ toInt32(right)), nil
	case token.SHIFT_LEFT:
		return float64(toInt32(left) << (uint32(toInt32(right)) & 31)), nil
	case token.SHIFT_RIGHT:
		return float64(toInt32(left) >> (uint32(toInt32(right)) & 31)), nil
	case token.UNSIGNED_SHIFT_RIGHT:
		return float64(uint32(toInt32(left)) >> (uint32(toInt32(right)) & 31)), nil
	case token.EQUAL:
		return LooseEquals(left, right), nil
	case token.NOT_EQUAL:
		return !LooseEquals(left, right), nil
	case token.STRICT_EQUAL:
		return StrictEquals(left, right), nil
	case token.STRICT_NOT_EQUAL:
		return !StrictEquals(left, right), nil
	case token.LESS, token.LESS_OR_EQUAL, token.GREATER, token.GREATER_OR_EQUAL:
		return compare(op, left, right), nil
	case token.IN:
		return hasProperty(right, propertyKey(left))
	}
	return nil, fmt.Errorf("%w: operator %s", ErrUnsupported, op)
}

func compare(op token.Token, left, right any) bool {
	l, r := toPrimitive(left), toPrimitive(right)
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch op {
		case token.LESS:
			return ls < rs
		case token.LESS_OR_EQUAL:
			return ls <= rs
		case token.GREATER:
			return ls > rs
		}
		return ls >= rs
	}
	a, b := ToNumber(l), ToNumber(r)
	switch op {
	case token.LESS:
		return a < b
	case token.LESS_OR_EQUAL:
		return a <= b
	case token.GREATER:
		return a > b
	}
	return a >= b
}

func hasProperty(obj any, key string) (any, error) {
	switch o := obj.(type) {
	case map[string]any:
		_, ok := o[key]
		return ok, nil
	case []any:
		if key == "length" {
			return true, nil
		}
		idx, ok := arrayIndex(key)
		return ok && idx < len(o), nil
	case Fielder:
		_, ok := o.Field(key)
		return ok, nil
	}
	return nil, fmt.Errorf("%w: cannot use 'in' operator to search for '%s' in %s", ErrType, key, ToString(obj))
}

func (ev *evaluator) assign(n *ast.AssignExpression) (any, error) {
	a, ok := ev.env.(Assigner)
	if !ok {
		return nil, fmt.Errorf("%w: assignment", ErrUnsupported)
	}
	id, ok := n.Left.(*ast.Identifier)
	if !ok {
		return nil, fmt.Errorf("%w: assignment to %T", ErrUnsupported, n.Left)
	}
	name := id.Name.String()

	var value any
	switch n.Operator {
	case token.ASSIGN:
		v, err := ev.eval(n.Right)
		if err != nil {
			return nil, err
		}
		value = v
	case token.LOGICAL_AND, token.LOGICAL_OR, token.COALESCE:
		v, err := ev.binary(&ast.BinaryExpression{Operator: n.Operator, Left: n.Left, Right: n.Right})
		if err != nil {
			return nil, err
		}
		value = v
	default:
		cur, err := ev.identifier(name)
		if err != nil {
			return nil, err
		}
		right, err := ev.eval(n.Right)
		if err != nil {
			return nil, err
		}
		if value, err = applyBinary(n.Operator, cur, right); err != nil {
			return nil, err
		}
	}
	if err := a.Assign(name, value); err != nil {
		return nil, err
	}
	return value, nil
}
