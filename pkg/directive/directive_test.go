package directive

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func leaf(name string, attrs ...Attribute) *Node {
	return &Node{Type: TypeLeaf, Name: name, Attributes: attrs}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindSet, KindOf("set"))
	assert.Equal(t, KindClearCheckpoint, KindOf("clearCheckpoint"))
	assert.Equal(t, KindUnknown, KindOf("audio"))
	assert.Equal(t, "loadCheckpoint", KindLoadCheckpoint.String())
	assert.Equal(t, "unknown", KindUnknown.String())

	assert.True(t, KindSplice.Pure())
	assert.True(t, KindFor.Pure())
	assert.False(t, KindBatch.Pure())
	assert.False(t, KindSave.Pure())
	assert.False(t, KindInclude.Pure())

	assert.Equal(t, KindUnknown, KindOfNode(&Node{Type: TypeText, Name: "set"}))
}

func TestWalk(t *testing.T) {
	tests := []struct {
		name  string
		nodes []*Node
		t     Transform
		want  []string
	}{
		{
			name:  "unhandled passes through",
			nodes: []*Node{NewText("a"), leaf("audio"), NewText("b")},
			t:     func(n *Node) (Result, bool) { return Result{}, false },
			want:  []string{"text", ":audio", "text"},
		},
		{
			name:  "remove",
			nodes: []*Node{NewText("a"), leaf("set"), NewText("b")},
			t: func(n *Node) (Result, bool) {
				if KindOfNode(n) == KindSet {
					return Remove(), true
				}
				return Result{}, false
			},
			want: []string{"text", "text"},
		},
		{
			name:  "replace with skip does not revisit",
			nodes: []*Node{leaf("show")},
			t: func(n *Node) (Result, bool) {
				if KindOfNode(n) == KindShow {
					return Replace(NewText("x"), leaf("show")), true
				}
				return Result{}, false
			},
			want: []string{"text", ":show"},
		},
		{
			name:  "replace without skip revisits",
			nodes: []*Node{leaf("include")},
			t: func(n *Node) (Result, bool) {
				switch KindOfNode(n) {
				case KindInclude:
					return Result{Nodes: []*Node{NewText("x"), leaf("set")}}, true
				case KindSet:
					return Remove(), true
				}
				return Result{}, false
			},
			want: []string{"text"},
		},
		{
			name:  "returning self is kept",
			nodes: []*Node{leaf("set")},
			t:     func(n *Node) (Result, bool) { return Result{Nodes: []*Node{n}}, true },
			want:  []string{":set"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Walk(tt.nodes, tt.t)
			got := make([]string, len(out))
			for i, n := range out {
				got[i] = n.String()
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWalk_DescendsIntoUnhandled(t *testing.T) {
	para := &Node{Type: TypeParagraph, Children: []*Node{NewText("a"), leaf("set"), NewText("b")}}
	out := Walk([]*Node{para}, func(n *Node) (Result, bool) {
		if KindOfNode(n) == KindSet {
			return Replace(NewText("!")), true
		}
		return Result{}, false
	})
	require.Len(t, out, 1)
	assert.Equal(t, "a!b", Text(out[0].Children))
}

func TestAttributes_JSONKeepsOrder(t *testing.T) {
	raw := `{"type":"leafDirective","name":"set","attributes":{"z":"1","a":"'x'","n":3,"b":true}}`
	var n Node
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.Equal(t, Attributes{{"z", "1"}, {"a", "'x'"}, {"n", "3"}, {"b", "true"}}, n.Attributes)

	out, err := json.Marshal(n.Attributes)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"1","a":"'x'","n":"3","b":"true"}`, string(out))
}

func TestAttributes_YAML(t *testing.T) {
	src := `
type: leafDirective
name: set
attributes:
  gold: "10"
  name: "'Ada'"
  bag: [1, 2]
`
	var n Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &n))
	assert.Equal(t, Attributes{{"gold", "10"}, {"name", "'Ada'"}, {"bag", "[1,2]"}}, n.Attributes)

	out, err := yaml.Marshal(&n)
	require.NoError(t, err)
	var back Node
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, n.Attributes, back.Attributes)
}

func TestLabelAndBody(t *testing.T) {
	container := &Node{
		Type: TypeContainer,
		Name: "if",
		Children: []*Node{
			{Type: TypeParagraph, Label: true, Children: []*Node{NewText(" gold > 1 ")}},
			NewText("rich"),
		},
	}
	assert.Equal(t, "gold > 1", container.LabelText())
	require.Len(t, container.Body(), 1)

	l := &Node{Type: TypeLeaf, Name: "set", Children: []*Node{NewText("gold")}}
	assert.Equal(t, "gold", l.LabelText())
	assert.Empty(t, l.Body())
}

func TestClone(t *testing.T) {
	n := &Node{Type: TypeContainer, Name: "for", Attributes: Attributes{{"a", "1"}}, Children: []*Node{NewText("x")}}
	c := n.Clone()
	c.Children[0].Value = "y"
	c.Attributes[0].Value = "2"
	assert.Equal(t, "x", n.Children[0].Value)
	assert.Equal(t, "1", n.Attributes[0].Value)
}
