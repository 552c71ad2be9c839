// Package engine applies a passage's directive tree to game state. One call
// to Apply is one synchronous evaluation pass: directives run in document
// order, control-flow blocks run in scoped transactions, and every
// recoverable problem lands in the returned error list instead of aborting
// the pass.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jwebster45206/campfire/pkg/checkpoint"
	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/expr"
	"github.com/jwebster45206/campfire/pkg/state"
	"github.com/jwebster45206/campfire/pkg/storage"
)

const (
	DefaultMaxIncludeDepth = 10
	DefaultMaxIterations   = 1000
)

// PassageSource resolves passage ids for include and ApplyPassage.
type PassageSource interface {
	Passage(id string) ([]*directive.Node, bool)
}

// Result is the outcome of one evaluation pass.
type Result struct {
	Nodes            []*directive.Node `json:"nodes"`
	Errors           []*DirectiveError `json:"errors"`
	Warnings         []string          `json:"warnings"`
	CurrentPassageID string            `json:"currentPassageId"`
}

// Engine owns one session's state store and checkpoints. It is not safe for
// concurrent use.
type Engine struct {
	store           *state.Store
	checkpoints     *checkpoint.Manager
	blobs           storage.BlobStore
	passages        PassageSource
	logger          *slog.Logger
	rand            *rand.Rand
	now             func() time.Time
	maxIncludeDepth int
	maxIterations   int
	saveKey         string

	errors []*DirectiveError
	exits  [][]*directive.Node
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithBlobStore sets where save directives write. Without one, save, load
// and clearSave silently do nothing.
func WithBlobStore(b storage.BlobStore) Option {
	return func(e *Engine) { e.blobs = b }
}

func WithPassages(p PassageSource) Option {
	return func(e *Engine) { e.passages = p }
}

// WithStore starts the engine on an existing store.
func WithStore(s *state.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithRand fixes the random source, mostly for tests.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rand = r }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMaxIncludeDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIncludeDepth = n
		}
	}
}

func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithSaveKey changes the default blob key of save, load and clearSave.
func WithSaveKey(key string) Option {
	return func(e *Engine) {
		if key != "" {
			e.saveKey = key
		}
	}
}

// New creates an engine with an empty store.
func New(opts ...Option) *Engine {
	e := &Engine{
		now:             time.Now,
		maxIncludeDepth: DefaultMaxIncludeDepth,
		maxIterations:   DefaultMaxIterations,
		saveKey:         checkpoint.DefaultSaveKey,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.store == nil {
		e.store = state.NewStore()
	}
	if e.rand == nil {
		e.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	e.checkpoints = checkpoint.NewManager(e.blobs, e.logger)
	return e
}

// Store returns the live state store.
func (e *Engine) Store() *state.Store {
	return e.store
}

// Checkpoints returns the session's checkpoint manager.
func (e *Engine) Checkpoints() *checkpoint.Manager {
	return e.checkpoints
}

// CurrentPassage returns the current passage pointer.
func (e *Engine) CurrentPassage() string {
	return e.checkpoints.Current()
}

// Errors returns every directive error recorded during the session.
func (e *Engine) Errors() []*DirectiveError {
	return append([]*DirectiveError(nil), e.errors...)
}

// PendingExits returns the onExit blocks registered by the current passage.
func (e *Engine) PendingExits() [][]*directive.Node {
	out := make([][]*directive.Node, len(e.exits))
	for i, block := range e.exits {
		out[i] = directive.CloneAll(block)
	}
	return out
}

// SetPendingExits restores onExit blocks registered in an earlier process.
func (e *Engine) SetPendingExits(blocks [][]*directive.Node) {
	e.exits = nil
	for _, block := range blocks {
		e.exits = append(e.exits, directive.CloneAll(block))
	}
}

// SaveData encodes the whole session.
func (e *Engine) SaveData() checkpoint.SaveData {
	return e.checkpoints.Encode(e.store.Snapshot())
}

// Restore replaces the session with data.
func (e *Engine) Restore(data checkpoint.SaveData) {
	e.store.Replace(data.Snapshot())
	e.store.ClearChanges()
	e.checkpoints.Restore(data)
}

// Evaluate evaluates an expression against the live store.
func (e *Engine) Evaluate(src string) any {
	return expr.EvaluateIn(src, storeEnv{e.store})
}

// Apply runs one evaluation pass over nodes for passageID. The input tree
// is not modified. Only a failure that aborts the whole pass is returned as
// an error; directive problems are in Result.Errors.
func (e *Engine) Apply(ctx context.Context, passageID string, nodes []*directive.Node) (res *Result, err error) {
	if passageID != "" {
		e.checkpoints.SetCurrent(passageID)
	}
	p := &pass{ctx: ctx, passageID: e.checkpoints.Current()}
	root := &frame{eng: e, pass: p, store: e.store}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Directive evaluation aborted", "passage", passageID, "panic", r)
			res, err = nil, fmt.Errorf("%w: %v", ErrMalformedInput, r)
		}
	}()

	out := root.walk(directive.CloneAll(nodes))
	return e.finish(p, out), nil
}

// ApplyPassage leaves the current passage, running its onExit blocks, and
// applies passageID from the configured passage source.
func (e *Engine) ApplyPassage(ctx context.Context, passageID string) (*Result, error) {
	if e.passages == nil {
		return nil, fmt.Errorf("%w: %s", ErrPassageNotFound, passageID)
	}
	nodes, ok := e.passages.Passage(passageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPassageNotFound, passageID)
	}
	exitErrs := e.Exit(ctx)
	res, err := e.Apply(ctx, passageID, nodes)
	if err != nil {
		return nil, err
	}
	res.Errors = append(exitErrs, res.Errors...)
	return res, nil
}

// Exit runs and clears the registered onExit blocks.
func (e *Engine) Exit(ctx context.Context) []*DirectiveError {
	blocks := e.exits
	e.exits = nil
	if len(blocks) == 0 {
		return nil
	}
	p := &pass{ctx: ctx, passageID: e.checkpoints.Current()}
	root := &frame{eng: e, pass: p, store: e.store, pure: "onExit"}
	for _, block := range blocks {
		root.walk(directive.CloneAll(block))
	}
	// blocks registered while exiting belong to no passage
	e.exits = nil
	return e.finish(p, nil).Errors
}

// Eval runs eval statements against the live store, as the eval directive
// would at the top level of a passage.
func (e *Engine) Eval(ctx context.Context, src string) []*DirectiveError {
	p := &pass{ctx: ctx, passageID: e.checkpoints.Current()}
	root := &frame{eng: e, pass: p, store: e.store}
	root.runScript(&directive.Node{Type: directive.TypeContainer, Name: "eval"}, src)
	return e.finish(p, nil).Errors
}

func (e *Engine) finish(p *pass, nodes []*directive.Node) *Result {
	e.errors = append(e.errors, p.errors...)
	if nodes == nil {
		nodes = []*directive.Node{}
	}
	return &Result{
		Nodes:            nodes,
		Errors:           p.errors,
		Warnings:         p.warnings,
		CurrentPassageID: e.checkpoints.Current(),
	}
}
