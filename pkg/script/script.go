// Package script runs the restricted statement language of the eval
// directive: expression statements, blocks, let/const declarations and
// if/else. Every other statement kind is rejected on its own while its
// siblings still run.
package script

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja/token"

	"github.com/jwebster45206/campfire/pkg/expr"
)

var (
	ErrUnsupportedStatement = errors.New("unsupported statement")
	ErrConstAssignment      = errors.New("assignment to constant variable")
	ErrRedeclared           = errors.New("identifier has already been declared")
)

// Run executes src. Globals are visible by name but cannot be reassigned;
// declared variables are lexical and disappear when Run returns. The
// returned errors are per statement, in execution order.
func Run(src string, globals map[string]any) []error {
	prog, err := parser.ParseFile(nil, "", src, 0)
	if err != nil {
		return []error{fmt.Errorf("%w: %v", expr.ErrSyntax, err)}
	}
	root := newScope(nil, globals)
	var errs []error
	for _, stmt := range prog.Body {
		errs = append(errs, exec(stmt, root)...)
	}
	return errs
}

func exec(stmt ast.Statement, sc *scope) []error {
	switch s := stmt.(type) {
	case *ast.EmptyStatement:
		return nil
	case *ast.ExpressionStatement:
		if _, err := expr.EvalNode(s.Expression, sc); err != nil {
			return []error{err}
		}
		return nil
	case *ast.BlockStatement:
		inner := newScope(sc, nil)
		var errs []error
		for _, child := range s.List {
			errs = append(errs, exec(child, inner)...)
		}
		return errs
	case *ast.LexicalDeclaration:
		return declare(s, sc)
	case *ast.IfStatement:
		test, err := expr.EvalNode(s.Test, sc)
		if err != nil {
			return []error{err}
		}
		if expr.Truthy(test) {
			return exec(s.Consequent, sc)
		}
		if s.Alternate != nil {
			return exec(s.Alternate, sc)
		}
		return nil
	case *ast.VariableStatement:
		return []error{fmt.Errorf("%w: var declarations, use let or const", ErrUnsupportedStatement)}
	}
	return []error{fmt.Errorf("%w: %s", ErrUnsupportedStatement, statementName(stmt))}
}

func declare(decl *ast.LexicalDeclaration, sc *scope) []error {
	isConst := decl.Token == token.CONST
	var errs []error
	for _, b := range decl.List {
		id, ok := b.Target.(*ast.Identifier)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: destructuring declarations", ErrUnsupportedStatement))
			continue
		}
		var value any = expr.Undefined
		if b.Initializer != nil {
			v, err := expr.EvalNode(b.Initializer, sc)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			value = v
		}
		if err := sc.declare(id.Name.String(), value, isConst); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func statementName(stmt ast.Statement) string {
	name := strings.TrimPrefix(fmt.Sprintf("%T", stmt), "*ast.")
	return strings.TrimSuffix(name, "Statement")
}
