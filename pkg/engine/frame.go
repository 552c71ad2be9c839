package engine

import (
	"context"
	"fmt"

	"github.com/jwebster45206/campfire/pkg/checkpoint"
	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/expr"
	"github.com/jwebster45206/campfire/pkg/state"
)

// pass is shared by every frame of one evaluation pass.
type pass struct {
	ctx       context.Context
	passageID string
	errors    []*DirectiveError
	warnings  []string

	// checkpoint committed by this pass, kept for rollback
	checkpoint *committedCheckpoint
	// a second checkpoint was seen; no further ones commit
	checkpointConflict bool
}

type committedCheckpoint struct {
	id      string
	prev    checkpoint.Checkpoint
	existed bool
}

// frame is the execution context of one block. Child frames own a scoped
// store; their writes and effects reach the parent only through commit.
type frame struct {
	eng    *Engine
	pass   *pass
	store  *state.Store
	parent *frame

	// effects leave the process or touch the checkpoint manager, so they
	// wait until the frame is committed to the root
	effects []func()

	// pure names the enclosing batch or onExit block; only state
	// directives may run inside one
	pure string

	depth int
}

type handler func(f *frame, n *directive.Node) directive.Result

var handlers map[directive.Kind]handler

func init() {
	handlers = map[directive.Kind]handler{
		directive.KindSet:             handleSet,
		directive.KindSetOnce:         handleSet,
		directive.KindArray:           handleArray,
		directive.KindArrayOnce:       handleArray,
		directive.KindCreateRange:     handleCreateRange,
		directive.KindSetRange:        handleSetRange,
		directive.KindRandom:          handleRandom,
		directive.KindRandomOnce:      handleRandom,
		directive.KindPush:            handlePush,
		directive.KindUnshift:         handlePush,
		directive.KindPop:             handlePop,
		directive.KindShift:           handlePop,
		directive.KindSplice:          handleSplice,
		directive.KindConcat:          handleConcat,
		directive.KindUnset:           handleUnset,
		directive.KindEval:            handleEval,
		directive.KindIf:              handleIf,
		directive.KindElseIf:          handleDanglingElse,
		directive.KindElse:            handleDanglingElse,
		directive.KindFor:             handleFor,
		directive.KindBatch:           handleBatch,
		directive.KindOnce:            handleOnce,
		directive.KindInclude:         handleInclude,
		directive.KindOnExit:          handleOnExit,
		directive.KindShow:            handleShow,
		directive.KindCheckpoint:      handleCheckpoint,
		directive.KindLoadCheckpoint:  handleLoadCheckpoint,
		directive.KindClearCheckpoint: handleClearCheckpoint,
		directive.KindSave:            handleSave,
		directive.KindLoad:            handleLoad,
		directive.KindClearSave:       handleClearSave,
	}
}

func (f *frame) walk(nodes []*directive.Node) []*directive.Node {
	return directive.Walk(nodes, f.dispatch)
}

func (f *frame) dispatch(n *directive.Node) (directive.Result, bool) {
	kind := directive.KindOfNode(n)
	if kind == directive.KindUnknown {
		return directive.Result{}, false
	}
	if f.pure != "" && !kind.Pure() {
		f.fail(Policy, n, "%s is not allowed inside %s", n.Name, f.pure)
		return directive.Remove(), true
	}
	h, ok := handlers[kind]
	if !ok {
		return directive.Result{}, false
	}
	return h(f, n), true
}

// child opens a scoped frame.
func (f *frame) child() *frame {
	return &frame{
		eng:    f.eng,
		pass:   f.pass,
		store:  f.store.CreateScope(),
		parent: f,
		pure:   f.pure,
		depth:  f.depth,
	}
}

// commit merges a child's changes and hands its effects up.
func (f *frame) commit(c *frame) {
	f.store.ApplyChanges(c.store.Changes())
	f.adopt(c)
}

// commitWithout is commit with one top-level key kept out of the merge.
func (f *frame) commitWithout(c *frame, key string) {
	f.store.ApplyChanges(c.store.Changes().Without(key))
	f.adopt(c)
}

func (f *frame) adopt(c *frame) {
	for _, fn := range c.effects {
		f.later(fn)
	}
}

// later runs fn once the frame's work is known to be kept: immediately at
// the root, on commit otherwise.
func (f *frame) later(fn func()) {
	if f.parent == nil {
		fn()
		return
	}
	f.effects = append(f.effects, fn)
}

func (f *frame) fail(kind ErrorKind, n *directive.Node, format string, args ...any) {
	name := ""
	if n != nil {
		name = n.Name
	}
	err := newDirectiveError(kind, name, format, args...)
	f.pass.errors = append(f.pass.errors, err)
	f.eng.logger.Debug("Directive error",
		"passage", f.pass.passageID,
		"directive", name,
		"kind", string(kind),
		"error", err.Message)
}

func (f *frame) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	f.pass.warnings = append(f.pass.warnings, msg)
	f.eng.logger.Warn("Directive warning", "passage", f.pass.passageID, "warning", msg)
}

func (f *frame) ctx() context.Context {
	if f.pass.ctx == nil {
		return context.Background()
	}
	return f.pass.ctx
}

func (f *frame) env() expr.Env {
	return storeEnv{f.store}
}

// eval evaluates an expression against the frame's store.
func (f *frame) eval(src string) any {
	return expr.EvaluateIn(src, f.env())
}

// storeEnv resolves identifiers as top-level state keys.
type storeEnv struct {
	store *state.Store
}

func (s storeEnv) Lookup(name string) (any, bool) {
	return s.store.GetValue(name)
}
