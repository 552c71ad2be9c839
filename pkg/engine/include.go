package engine

import (
	"strings"

	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/state"
)

// handleInclude inlines another passage's processed output. Recursion is
// bounded by the engine's include depth.
func handleInclude(f *frame, n *directive.Node) directive.Result {
	id := n.LabelText()
	if id == "" {
		id, _ = n.Attributes.Get("passage")
	}
	if id = strings.TrimSpace(state.Unquote(id)); id == "" {
		f.fail(Malformed, n, "include requires a passage id")
		return directive.Remove()
	}
	if f.depth >= f.eng.maxIncludeDepth {
		f.warn("include of %s skipped: depth limit %d reached", id, f.eng.maxIncludeDepth)
		return directive.Remove()
	}
	if f.eng.passages == nil {
		f.fail(Lookup, n, "passage not found: %s", id)
		return directive.Remove()
	}
	nodes, ok := f.eng.passages.Passage(id)
	if !ok {
		f.fail(Lookup, n, "passage not found: %s", id)
		return directive.Remove()
	}

	f.depth++
	out := f.walk(directive.CloneAll(nodes))
	f.depth--
	return directive.Replace(out...)
}

// handleOnExit registers state-only directives to run when the player
// leaves the passage.
func handleOnExit(f *frame, n *directive.Node) directive.Result {
	block := f.pureOnly(directive.CloneAll(n.Body()), "onExit")
	if len(block) == 0 {
		return directive.Remove()
	}
	eng := f.eng
	f.later(func() { eng.exits = append(eng.exits, block) })
	return directive.Remove()
}

// pureOnly drops, with an error each, every directive below nodes that is
// not a state directive.
func (f *frame) pureOnly(nodes []*directive.Node, within string) []*directive.Node {
	out := nodes[:0]
	for _, n := range nodes {
		kind := directive.KindOfNode(n)
		if n.IsDirective() && !kind.Pure() {
			f.fail(Policy, n, "%s is not allowed inside %s", n.Name, within)
			continue
		}
		if len(n.Children) > 0 {
			n.Children = f.pureOnly(n.Children, within)
		}
		out = append(out, n)
	}
	return out
}
