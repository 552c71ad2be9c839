package engine

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/state"
	"github.com/jwebster45206/campfire/pkg/storage"
)

func text(s string) *directive.Node {
	return directive.NewText(s)
}

func a(k, v string) directive.Attribute {
	return directive.Attribute{Key: k, Value: v}
}

func leaf(name, label string, attrs ...directive.Attribute) *directive.Node {
	n := &directive.Node{Type: directive.TypeLeaf, Name: name, Attributes: attrs}
	if label != "" {
		n.Children = []*directive.Node{text(label)}
	}
	return n
}

func block(name, label string, attrs []directive.Attribute, children ...*directive.Node) *directive.Node {
	n := &directive.Node{Type: directive.TypeContainer, Name: name, Attributes: attrs}
	if label != "" {
		n.Children = append(n.Children, &directive.Node{
			Type:     directive.TypeParagraph,
			Label:    true,
			Children: []*directive.Node{text(label)},
		})
	}
	n.Children = append(n.Children, children...)
	return n
}

func code(src string) *directive.Node {
	return &directive.Node{Type: directive.TypeCode, Value: src}
}

type passages map[string][]*directive.Node

func (p passages) Passage(id string) ([]*directive.Node, bool) {
	nodes, ok := p[id]
	return nodes, ok
}

func newTestEngine(opts ...Option) *Engine {
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	base := []Option{
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(func() time.Time { return clock }),
	}
	return New(append(base, opts...)...)
}

func apply(t *testing.T, e *Engine, nodes ...*directive.Node) *Result {
	t.Helper()
	res, err := e.Apply(context.Background(), "start", nodes)
	require.NoError(t, err)
	return res
}

func get(t *testing.T, e *Engine, path string) any {
	t.Helper()
	v, _ := e.Store().GetValue(path)
	return v
}

func messages(errs []*DirectiveError) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Message
	}
	return out
}

func renderText(nodes []*directive.Node) string {
	return directive.Text(nodes)
}

func TestApply_SetForms(t *testing.T) {
	e := newTestEngine()
	res := apply(t, e,
		text("Hello "),
		leaf("set", "", a("key", "name"), a("value", `"Ada"`)),
		leaf("set", "hp = 3 + 4"),
		leaf("set", "", a("gold", "10"), a("open", "true")),
		leaf("set", "bag.size", a("value", "2")),
		leaf("array", "", a("key", "items"), a("value", "sword, 3, true")),
		text("world"),
	)

	assert.Empty(t, res.Errors)
	assert.Equal(t, "Hello world", renderText(res.Nodes))
	assert.Equal(t, "Ada", get(t, e, "name"))
	assert.Equal(t, 7.0, get(t, e, "hp"))
	assert.Equal(t, 10.0, get(t, e, "gold"))
	assert.Equal(t, true, get(t, e, "open"))
	assert.Equal(t, 2.0, get(t, e, "bag.size"))
	assert.Equal(t, []any{"sword", 3.0, true}, get(t, e, "items"))
	assert.Equal(t, "start", res.CurrentPassageID)
}

func TestApply_UnknownDirectivesPassThrough(t *testing.T) {
	e := newTestEngine()
	audio := leaf("audio", "", a("src", "rain.mp3"))
	res := apply(t, e, audio)
	require.Len(t, res.Nodes, 1)
	assert.Equal(t, "audio", res.Nodes[0].Name)
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	e := newTestEngine()
	nodes := []*directive.Node{leaf("set", "", a("x", "1")), text("t")}
	before, err := json.Marshal(nodes)
	require.NoError(t, err)

	apply(t, e, nodes...)
	after, err := json.Marshal(nodes)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestApply_Locking(t *testing.T) {
	e := newTestEngine()
	res := apply(t, e,
		leaf("setOnce", "", a("key", "door"), a("value", `"open"`)),
		leaf("set", "", a("key", "door"), a("value", `"shut"`)),
		leaf("randomOnce", "", a("key", "roll"), a("min", "1"), a("max", "6")),
	)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "open", get(t, e, "door"))
	assert.True(t, e.Store().IsLocked("door"))

	first := get(t, e, "roll")
	for range 5 {
		apply(t, e, leaf("randomOnce", "", a("key", "roll"), a("min", "1"), a("max", "6")))
		assert.Equal(t, first, get(t, e, "roll"))
	}

	apply(t, e, leaf("unset", "door"), leaf("set", "", a("door", `"shut"`)))
	assert.Equal(t, "shut", get(t, e, "door"))
	assert.False(t, e.Store().IsLocked("door"))
}

func TestApply_RangeClamping(t *testing.T) {
	e := newTestEngine()
	apply(t, e, leaf("createRange", "hp", a("min", "0"), a("max", "10"), a("value", "15")))
	assert.Equal(t, state.RangeValue{Min: 0, Max: 10, Value: 10}, get(t, e, "hp"))

	for _, in := range []string{"-5", "3", "99", "hp.value + 100"} {
		apply(t, e, leaf("setRange", "hp", a("value", in)))
		r, ok := get(t, e, "hp").(state.RangeValue)
		require.True(t, ok)
		assert.GreaterOrEqual(t, r.Value, r.Min, in)
		assert.LessOrEqual(t, r.Value, r.Max, in)
	}

	apply(t, e, leaf("setRange", "hp", a("value", "4")), leaf("setRange", "hp", a("max", "2")))
	assert.Equal(t, state.RangeValue{Min: 0, Max: 2, Value: 2}, get(t, e, "hp"))

	res := apply(t, e, leaf("setRange", "mana", a("value", "3")))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, Malformed, res.Errors[0].Kind)
}

func TestApply_Random(t *testing.T) {
	e := newTestEngine()
	for range 20 {
		apply(t, e,
			leaf("random", "", a("key", "d6"), a("min", "1"), a("max", "6")),
			leaf("random", "", a("key", "pick"), a("options", `["a","b","c"]`)),
		)
		n, ok := get(t, e, "d6").(float64)
		require.True(t, ok)
		assert.True(t, n >= 1 && n <= 6 && n == float64(int(n)))
		assert.Contains(t, []any{"a", "b", "c"}, get(t, e, "pick"))
	}

	res := apply(t, e, leaf("random", "", a("key", "bad")))
	assert.Equal(t, []string{"random bad requires numeric min and max, or options"}, messages(res.Errors))
}

func TestApply_ArrayOps(t *testing.T) {
	e := newTestEngine()
	res := apply(t, e,
		leaf("array", "", a("key", "bag"), a("value", `["a","b","c"]`)),
		leaf("push", "", a("key", "bag"), a("value", `"d"`)),
		leaf("unshift", "", a("key", "bag"), a("value", `"z"`)),
		leaf("pop", "", a("key", "bag"), a("into", "last")),
		leaf("shift", "", a("key", "bag"), a("into", "first")),
		leaf("splice", "", a("key", "bag"), a("index", "1"), a("count", "1"), a("value", `["x","y"]`), a("into", "cut")),
		leaf("concat", "", a("key", "bag"), a("value", `["q"]`)),
		leaf("push", "", a("key", "fresh"), a("items", "[1, 2]")),
	)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []any{"a", "x", "y", "c", "q"}, get(t, e, "bag"))
	assert.Equal(t, "d", get(t, e, "last"))
	assert.Equal(t, "z", get(t, e, "first"))
	assert.Equal(t, []any{"b"}, get(t, e, "cut"))
	assert.Equal(t, []any{1.0, 2.0}, get(t, e, "fresh"))

	apply(t, e, leaf("set", "", a("key", "name"), a("value", `"Ada"`)))
	res = apply(t, e, leaf("push", "", a("key", "name"), a("value", "1")))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Ada", get(t, e, "name"))
}

func TestApply_SpliceLockedTargetIsAllOrNothing(t *testing.T) {
	e := newTestEngine()
	apply(t, e,
		leaf("array", "", a("key", "bag"), a("value", `["a","b"]`)),
		leaf("setOnce", "", a("key", "cut"), a("value", `"kept"`)),
	)
	apply(t, e, leaf("splice", "", a("key", "bag"), a("index", "0"), a("count", "1"), a("into", "cut")))
	assert.Equal(t, []any{"a", "b"}, get(t, e, "bag"))
	assert.Equal(t, "kept", get(t, e, "cut"))
}

func TestApply_If(t *testing.T) {
	e := newTestEngine()
	apply(t, e, leaf("set", "", a("hp", "3"), a("class", `"mage"`)))

	res := apply(t, e, block("if", "hp > 5", nil,
		text("strong"),
		leaf("set", "", a("branch", `"then"`)),
		leaf("else", ""),
		text("weak"),
		leaf("set", "", a("branch", `"else"`)),
	))
	assert.Equal(t, "weak", renderText(res.Nodes))
	assert.Equal(t, "else", get(t, e, "branch"))

	res = apply(t, e, block("if", "", []directive.Attribute{a("class", "mage")},
		text("wizard"),
		leaf("elseif", "hp > 1"),
		text("tough"),
	))
	assert.Equal(t, "wizard", renderText(res.Nodes))

	res = apply(t, e, block("if", "hp > 5", nil,
		text("a"),
		leaf("elseif", "hp > 1"),
		text("b"),
		leaf("else", ""),
		text("c"),
	))
	assert.Equal(t, "b", renderText(res.Nodes))
}

func TestApply_IfErrorsSurfaceFromEveryBranch(t *testing.T) {
	e := newTestEngine()
	res := apply(t, e, block("if", "true", nil,
		text("ok"),
		leaf("else", ""),
		leaf("set", ""),
	))
	assert.Equal(t, "ok", renderText(res.Nodes))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, Malformed, res.Errors[0].Kind)
}

func TestApply_DanglingElse(t *testing.T) {
	e := newTestEngine()
	res := apply(t, e, leaf("else", ""))
	assert.Equal(t, []string{"else without a matching if"}, messages(res.Errors))
}

func TestApply_ForLoopVariableDoesNotLeak(t *testing.T) {
	e := newTestEngine()
	apply(t, e, leaf("array", "", a("key", "items"), a("value", `["a","b","c"]`)))

	res := apply(t, e, block("for", "item in items", nil,
		leaf("push", "", a("key", "seen"), a("value", "item")),
		leaf("set", "", a("last", "item")),
		leaf("show", "item"),
	))
	assert.Empty(t, res.Errors)
	assert.Equal(t, "abc", renderText(res.Nodes))
	assert.Equal(t, []any{"a", "b", "c"}, get(t, e, "seen"))
	assert.Equal(t, "c", get(t, e, "last"))
	_, leaked := e.Store().GetValue("item")
	assert.False(t, leaked)
}

func TestApply_ForOverRange(t *testing.T) {
	e := newTestEngine()
	apply(t, e, leaf("createRange", "r", a("min", "1"), a("max", "3")))
	res := apply(t, e, block("for", "i in r", nil,
		leaf("push", "", a("key", "out"), a("value", "i * 10")),
	))
	assert.Empty(t, res.Errors)
	assert.Equal(t, []any{10.0, 20.0, 30.0}, get(t, e, "out"))
}

func TestApply_ForMalformedHeader(t *testing.T) {
	e := newTestEngine()
	for _, header := range []string{"items", "1x in items", "in items"} {
		res := apply(t, e, block("for", header, nil, leaf("set", "", a("x", "1"))))
		assert.Len(t, res.Errors, 1, header)
		assert.Empty(t, res.Nodes, header)
	}
	_, ok := e.Store().GetValue("x")
	assert.False(t, ok)
}

func TestApply_ForIterationBound(t *testing.T) {
	e := newTestEngine(WithMaxIterations(3))
	res := apply(t, e, block("for", "i in 5", nil, leaf("set", "", a("x", "i"))))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, Policy, res.Errors[0].Kind)
}

func TestApply_Batch(t *testing.T) {
	e := newTestEngine()
	res := apply(t, e, block("batch", "", nil,
		leaf("set", "", a("a", "1")),
		leaf("set", "", a("b", "a + 1")),
		text("dropped"),
	))
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Nodes)
	assert.Equal(t, 1.0, get(t, e, "a"))
	assert.Equal(t, 2.0, get(t, e, "b"))
}

func TestApply_NestedBatch(t *testing.T) {
	e := newTestEngine()
	res := apply(t, e, block("batch", "", nil,
		leaf("set", "", a("a", "1")),
		block("if", "true", nil,
			block("batch", "", nil, leaf("set", "", a("b", "2"))),
		),
	))
	assert.Equal(t, []string{"nested batch not allowed"}, messages(res.Errors))
	assert.Empty(t, e.Store().Keys())
}

func TestApply_BatchRejectsNonStateDirectives(t *testing.T) {
	e := newTestEngine()
	res := apply(t, e, block("batch", "", nil,
		leaf("set", "", a("a", "1")),
		leaf("checkpoint", "cp"),
	))
	assert.Equal(t, []string{"checkpoint is not allowed inside batch"}, messages(res.Errors))
	assert.Equal(t, 1.0, get(t, e, "a"))
	assert.Empty(t, e.Checkpoints().IDs())
}

func TestApply_Once(t *testing.T) {
	e := newTestEngine()
	intro := block("once", "intro", nil, text("first visit"))
	res := apply(t, e, intro)
	assert.Equal(t, "first visit", renderText(res.Nodes))
	res = apply(t, e, intro)
	assert.Empty(t, res.Nodes)
	assert.True(t, e.Store().HasOnce("intro"))
}

func TestApply_Include(t *testing.T) {
	src := passages{
		"sidebar": {text("inv: "), leaf("show", "gold")},
		"loop":    {text("."), leaf("include", "loop")},
	}
	e := newTestEngine(WithPassages(src), WithMaxIncludeDepth(3))
	apply(t, e, leaf("set", "", a("gold", "5")))

	res := apply(t, e, leaf("include", "sidebar"))
	assert.Equal(t, "inv: 5", renderText(res.Nodes))

	res = apply(t, e, leaf("include", "loop"))
	assert.Equal(t, "...", renderText(res.Nodes))
	assert.Len(t, res.Warnings, 1)
	assert.Empty(t, res.Errors)

	res = apply(t, e, leaf("include", "missing"))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, Lookup, res.Errors[0].Kind)
}

func TestApply_Show(t *testing.T) {
	e := newTestEngine()
	apply(t, e,
		leaf("set", "", a("name", `"ada"`)),
		leaf("createRange", "hp", a("min", "0"), a("max", "10"), a("value", "7")),
	)
	tests := []struct {
		node *directive.Node
		want string
	}{
		{leaf("show", "name"), "ada"},
		{leaf("show", "hp"), "7"},
		{leaf("show", "", a("key", "hp.max")), "10"},
		{leaf("show", "missing"), ""},
		{leaf("show", "name", a("format", `"{{ .Value | upper }}!"`)), "ADA!"},
		{leaf("show", "hp", a("format", `"{{ .Value.Value }}/{{ .Value.Max }}"`)), "7/10"},
	}
	for _, tt := range tests {
		res := apply(t, e, tt.node)
		assert.Empty(t, res.Errors)
		assert.Equal(t, tt.want, renderText(res.Nodes))
	}

	res := apply(t, e, leaf("show", "name", a("format", `"{{ .Value "`)))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, Malformed, res.Errors[0].Kind)

	res = apply(t, e, leaf("show", "name", a("format", `"no placeholders"`)))
	assert.Empty(t, res.Errors)
	assert.Equal(t, "no placeholders", renderText(res.Nodes))
}

func TestApply_ShowCannotReadEnvironment(t *testing.T) {
	t.Setenv("CAMPFIRE_SECRET", "hunter2")
	e := newTestEngine()

	for _, format := range []string{
		`'{{ env "CAMPFIRE_SECRET" }}'`,
		`'{{ expandenv "$CAMPFIRE_SECRET" }}'`,
	} {
		res := apply(t, e, leaf("show", "1", a("format", format)))
		require.Len(t, res.Errors, 1, format)
		assert.Equal(t, Malformed, res.Errors[0].Kind)
		assert.NotContains(t, renderText(res.Nodes), "hunter2")
	}
}

func TestApply_Eval(t *testing.T) {
	e := newTestEngine()
	apply(t, e, leaf("set", "", a("gold", "5")))

	res := apply(t, e, block("eval", "", nil, code(`
const bonus = 10;
let total = game.gold + bonus;
if (total > 12) {
  state.set("rich", true);
} else {
  state.set("rich", false);
}
state.setValue("total", total);
state.set("key", "locked", {lock: true});
while (true) {}
state.set("after", game.gold);
state.set("seen", typeof game.total);
`)))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, Grammar, res.Errors[0].Kind)
	assert.Equal(t, true, get(t, e, "rich"))
	assert.Equal(t, 15.0, get(t, e, "total"))
	assert.Equal(t, 5.0, get(t, e, "after"))
	assert.Equal(t, "undefined", get(t, e, "seen"), "game is the snapshot taken when eval starts")
	assert.True(t, e.Store().IsLocked("key"))
	_, leaked := e.Store().GetValue("bonus")
	assert.False(t, leaked)

	res = apply(t, e, leaf("eval", "state.set(\"x\", "))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, Malformed, res.Errors[0].Kind)
}

func TestEngine_EvalAndEvaluate(t *testing.T) {
	e := newTestEngine()
	errs := e.Eval(context.Background(), `state.set("a", 2); state.setRange("hp", 0, 5, 9);`)
	assert.Empty(t, errs)
	assert.Equal(t, 2.0, e.Evaluate("a"))
	assert.Equal(t, 5.0, e.Evaluate("hp.value"))
	assert.Equal(t, "number", e.Evaluate("typeof a"))
}

func TestApply_CheckpointRoundTrip(t *testing.T) {
	e := newTestEngine()
	apply(t, e,
		leaf("set", "", a("gold", "5"), a("bag", `["rope"]`)),
		leaf("setOnce", "", a("key", "hero"), a("value", `"Ada"`)),
		block("once", "intro", nil, text("hi")),
	)
	captured, err := json.Marshal(e.Store().Snapshot())
	require.NoError(t, err)

	res := apply(t, e, leaf("checkpoint", "cp1", a("label", `"Camp"`)))
	assert.Empty(t, res.Errors)
	cp, ok := e.Checkpoints().Get("cp1")
	require.True(t, ok)
	assert.Equal(t, "Camp", cp.Label)
	assert.Equal(t, "start", cp.CurrentPassageID)

	_, err = e.Apply(context.Background(), "cave", []*directive.Node{
		leaf("set", "", a("gold", "99"), a("torch", "true")),
		leaf("unset", "hero"),
		block("once", "cave", nil, text("dark")),
	})
	require.NoError(t, err)

	res = apply(t, e, leaf("loadCheckpoint", "cp1"))
	assert.Empty(t, res.Errors)
	restored, err := json.Marshal(e.Store().Snapshot())
	require.NoError(t, err)
	assert.Equal(t, string(captured), string(restored))
	assert.Equal(t, "start", e.CurrentPassage())

	res = apply(t, e, leaf("loadCheckpoint", "nope"))
	assert.Equal(t, []string{"Checkpoint not found: nope"}, messages(res.Errors))
}

func TestApply_LoadLatestCheckpoint(t *testing.T) {
	e := newTestEngine()
	apply(t, e, leaf("set", "", a("n", "1")), leaf("checkpoint", "a"))
	apply(t, e, leaf("set", "", a("n", "2")), leaf("checkpoint", "b"))
	apply(t, e, leaf("set", "", a("n", "3")))

	apply(t, e, leaf("loadCheckpoint", ""))
	assert.Equal(t, 2.0, get(t, e, "n"))

	apply(t, e, leaf("clearCheckpoint", "b"))
	assert.Equal(t, []string{"a"}, e.Checkpoints().IDs())
	apply(t, e, leaf("clearCheckpoint", ""))
	assert.Empty(t, e.Checkpoints().IDs())

	res := apply(t, e, leaf("loadCheckpoint", ""))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, Lookup, res.Errors[0].Kind)
}

func TestApply_SingleCheckpointPerPassage(t *testing.T) {
	e := newTestEngine()
	res := apply(t, e,
		leaf("checkpoint", "one"),
		text("between"),
		leaf("checkpoint", "two"),
	)
	assert.Equal(t, []string{errMultipleCheckpoints}, messages(res.Errors))
	assert.Empty(t, e.Checkpoints().IDs())

	res = apply(t, e, leaf("checkpoint", "three"))
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"three"}, e.Checkpoints().IDs())
}

func TestApply_SecondCheckpointRestoresOverwritten(t *testing.T) {
	e := newTestEngine()
	apply(t, e, leaf("set", "", a("n", "1")), leaf("checkpoint", "cp"))
	apply(t, e, leaf("set", "", a("n", "2")), leaf("checkpoint", "cp"), leaf("checkpoint", "other"))

	cp, ok := e.Checkpoints().Get("cp")
	require.True(t, ok)
	assert.Equal(t, 1.0, cp.GameData["n"])
	assert.Equal(t, []string{"cp"}, e.Checkpoints().IDs())
}

func TestApply_CheckpointInUntakenBranchDoesNotCommit(t *testing.T) {
	e := newTestEngine()
	res := apply(t, e, block("if", "false", nil,
		leaf("checkpoint", "hidden"),
		leaf("else", ""),
		text("x"),
	))
	assert.Empty(t, res.Errors)
	assert.Empty(t, e.Checkpoints().IDs())
}

func TestApply_SaveLoadRoundTrip(t *testing.T) {
	blobs := storage.NewMemoryStore()
	e := newTestEngine(WithBlobStore(blobs))
	apply(t, e,
		leaf("set", "", a("gold", "5"), a("bag", `["rope", {"kind": "torch"}]`)),
		leaf("createRange", "hp", a("min", "0"), a("max", "10"), a("value", "4")),
		leaf("setOnce", "", a("key", "hero"), a("value", `"Ada"`)),
	)
	apply(t, e, leaf("checkpoint", "camp"))
	want := e.Store().Data()
	res := apply(t, e, leaf("save", "s1"))
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"s1"}, blobs.Keys(""))

	fresh := newTestEngine(WithBlobStore(blobs))
	res, err := fresh.Apply(context.Background(), "", []*directive.Node{leaf("load", "s1")})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, want, fresh.Store().Data())
	assert.True(t, fresh.Store().IsLocked("hero"))
	assert.Equal(t, "start", fresh.CurrentPassage())
	assert.Equal(t, []string{"camp"}, fresh.Checkpoints().IDs())

	apply(t, fresh, leaf("clearSave", "s1"))
	assert.Empty(t, blobs.Keys(""))
	res = apply(t, fresh, leaf("load", "s1"))
	assert.Equal(t, []string{"Save not found: s1"}, messages(res.Errors))
}

func TestApply_SaveDefaultKey(t *testing.T) {
	blobs := storage.NewMemoryStore()
	e := newTestEngine(WithBlobStore(blobs), WithSaveKey("slot"))
	apply(t, e, leaf("set", "", a("x", "1")), leaf("save", ""))
	assert.Equal(t, []string{"slot"}, blobs.Keys(""))
}

func TestApply_LoadWithoutCurrentPassage(t *testing.T) {
	blobs := storage.NewMemoryStore()
	require.NoError(t, blobs.Set(context.Background(), "old",
		`{"gameData":{"gold":3},"lockedKeys":{},"onceKeys":{},"checkpoints":{}}`))

	e := newTestEngine(WithBlobStore(blobs))
	res := apply(t, e, leaf("load", "old"))
	assert.Equal(t, []string{"Loaded save data is missing currentPassageId"}, messages(res.Errors))
	assert.Equal(t, 3.0, get(t, e, "gold"))
	assert.Equal(t, "start", e.CurrentPassage())
}

func TestApply_LoadCorruptSave(t *testing.T) {
	blobs := storage.NewMemoryStore()
	require.NoError(t, blobs.Set(context.Background(), "bad", "{not json"))
	e := newTestEngine(WithBlobStore(blobs))
	apply(t, e, leaf("set", "", a("gold", "1")))

	res := apply(t, e, leaf("load", "bad"))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, Malformed, res.Errors[0].Kind)
	assert.Equal(t, 1.0, get(t, e, "gold"))
}

func TestApply_PersistenceWithoutBlobStoreIsSilent(t *testing.T) {
	e := newTestEngine()
	res := apply(t, e,
		leaf("set", "", a("x", "1")),
		leaf("save", ""),
		leaf("load", ""),
		leaf("clearSave", ""),
	)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1.0, get(t, e, "x"))
}

func TestApply_PersistenceStorageFailureIsSilent(t *testing.T) {
	blobs := storage.NewMemoryStore()
	blobs.SetFailure(storage.ErrUnavailable)
	e := newTestEngine(WithBlobStore(blobs))
	res := apply(t, e, leaf("save", ""), leaf("load", ""))
	assert.Empty(t, res.Errors)
}

func TestApplyPassage_OnExit(t *testing.T) {
	src := passages{
		"hall": {
			text("hall"),
			block("onExit", "", nil,
				leaf("set", "", a("leftHall", "true")),
				leaf("show", "x"),
			),
		},
		"yard": {text("yard")},
	}
	e := newTestEngine(WithPassages(src))
	ctx := context.Background()

	res, err := e.ApplyPassage(ctx, "hall")
	require.NoError(t, err)
	assert.Equal(t, []string{"show is not allowed inside onExit"}, messages(res.Errors))
	_, ok := e.Store().GetValue("leftHall")
	assert.False(t, ok)
	require.Len(t, e.PendingExits(), 1)

	res, err = e.ApplyPassage(ctx, "yard")
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "yard", res.CurrentPassageID)
	assert.Equal(t, true, get(t, e, "leftHall"))
	assert.Empty(t, e.PendingExits())

	_, err = e.ApplyPassage(ctx, "nowhere")
	assert.ErrorIs(t, err, ErrPassageNotFound)
}

func TestEngine_ErrorsAccumulate(t *testing.T) {
	e := newTestEngine()
	apply(t, e, leaf("set", ""))
	apply(t, e, leaf("unset", ""))
	assert.Len(t, e.Errors(), 2)
}

func TestEngine_SaveDataRestore(t *testing.T) {
	e := newTestEngine()
	apply(t, e, leaf("set", "", a("x", "1")), leaf("checkpoint", "c"))

	other := newTestEngine()
	other.Restore(e.SaveData())
	assert.Equal(t, 1.0, get(t, other, "x"))
	assert.Equal(t, "start", other.CurrentPassage())
	assert.Equal(t, []string{"c"}, other.Checkpoints().IDs())
}

func TestApply_ForBoundCheckedBeforeExpansion(t *testing.T) {
	e := newTestEngine(WithMaxIterations(10))
	apply(t, e, leaf("createRange", "r", a("min", "-1e15"), a("max", "1e15"), a("value", "0")))

	for _, header := range []string{"i in 1e15", "i in r"} {
		res := apply(t, e, block("for", header, nil, leaf("set", "", a("x", "i"))))
		require.Len(t, res.Errors, 1, header)
		assert.Equal(t, Policy, res.Errors[0].Kind, header)
	}
	_, ok := e.Store().GetValue("x")
	assert.False(t, ok)

	res := apply(t, e, block("for", "i in 2.5", nil, leaf("set", "", a("x", "i"))))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, Malformed, res.Errors[0].Kind)
}

func TestApply_RandomBoundsOutsideSafeIntegers(t *testing.T) {
	e := newTestEngine()
	res := apply(t, e, leaf("random", "", a("key", "roll"), a("min", "-9e18"), a("max", "9e18")))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, Malformed, res.Errors[0].Kind)
	_, ok := e.Store().GetValue("roll")
	assert.False(t, ok)

	res = apply(t, e, leaf("random", "", a("key", "roll"),
		a("min", "-9007199254740991"), a("max", "9007199254740991")))
	assert.Empty(t, res.Errors)
	v, ok := get(t, e, "roll").(float64)
	require.True(t, ok)
	assert.LessOrEqual(t, math.Abs(v), 9007199254740991.0)
}

func TestApply_RestoreDropsDottedOnceIDs(t *testing.T) {
	blobs := storage.NewMemoryStore()
	e := newTestEngine(WithBlobStore(blobs))
	apply(t, e, leaf("checkpoint", "cp"), leaf("save", "s1"))

	intro := block("once", "ch1.intro", nil, text("chapter one"))
	apply(t, e, intro)
	require.True(t, e.Store().HasOnce("ch1.intro"))

	res := apply(t, e, leaf("loadCheckpoint", "cp"))
	assert.Empty(t, res.Errors)
	assert.False(t, e.Store().HasOnce("ch1.intro"))
	assert.Empty(t, e.Store().OnceKeys())

	res = apply(t, e, intro)
	assert.Equal(t, "chapter one", renderText(res.Nodes))
	require.True(t, e.Store().HasOnce("ch1.intro"))

	res = apply(t, e, leaf("load", "s1"))
	assert.Empty(t, res.Errors)
	assert.False(t, e.Store().HasOnce("ch1.intro"))
	assert.Empty(t, e.Store().OnceKeys())
}

func TestApply_LoopVariableStaysOutOfSnapshots(t *testing.T) {
	blobs := storage.NewMemoryStore()
	e := newTestEngine(WithBlobStore(blobs))
	res := apply(t, e, block("for", "item in [1]", nil,
		leaf("checkpoint", "cp"),
		leaf("save", "s1"),
	))
	require.Empty(t, res.Errors)

	cp, ok := e.Checkpoints().Get("cp")
	require.True(t, ok)
	assert.NotContains(t, cp.GameData, "item")

	apply(t, e, leaf("set", "", a("gold", "1")))
	res = apply(t, e, leaf("loadCheckpoint", "cp"))
	assert.Empty(t, res.Errors)
	assert.Empty(t, e.Store().Keys())

	res = apply(t, e, leaf("load", "s1"))
	assert.Empty(t, res.Errors)
	_, ok = e.Store().GetValue("item")
	assert.False(t, ok)
}
