package script

import (
	"fmt"

	"github.com/jwebster45206/campfire/pkg/expr"
)

// scope is one level of the lexical chain. Lookups walk to the root and then
// to the globals.
type scope struct {
	vars    map[string]any
	consts  map[string]bool
	parent  *scope
	globals map[string]any
}

var _ expr.Assigner = (*scope)(nil)

func newScope(parent *scope, globals map[string]any) *scope {
	if parent != nil {
		globals = parent.globals
	}
	return &scope{
		vars:    make(map[string]any),
		consts:  make(map[string]bool),
		parent:  parent,
		globals: globals,
	}
}

func (s *scope) Lookup(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	v, ok := s.globals[name]
	return v, ok
}

func (s *scope) Assign(name string, value any) error {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			if cur.consts[name] {
				return fmt.Errorf("%w: %s", ErrConstAssignment, name)
			}
			cur.vars[name] = value
			return nil
		}
	}
	if _, ok := s.globals[name]; ok {
		return fmt.Errorf("%w: %s", ErrConstAssignment, name)
	}
	return fmt.Errorf("%w: %s is not defined", expr.ErrReference, name)
}

func (s *scope) declare(name string, value any, isConst bool) error {
	if _, ok := s.vars[name]; ok {
		return fmt.Errorf("%w: %s", ErrRedeclared, name)
	}
	s.vars[name] = value
	if isConst {
		s.consts[name] = true
	}
	return nil
}
