package directive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node types produced by the markdown parser. Any other type is passed
// through untouched.
const (
	TypeText      = "text"
	TypeCode      = "code"
	TypeInline    = "inlineCode"
	TypeParagraph = "paragraph"
	TypeContainer = "containerDirective"
	TypeLeaf      = "leafDirective"
	TypeTextDir   = "textDirective"
	TypeHint      = "hint"
)

// Node is one element of the directive AST.
type Node struct {
	Type       string         `json:"type" yaml:"type"`
	Name       string         `json:"name,omitempty" yaml:"name,omitempty"`
	Value      string         `json:"value,omitempty" yaml:"value,omitempty"`
	Attributes Attributes     `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Children   []*Node        `json:"children,omitempty" yaml:"children,omitempty"`
	Label      bool           `json:"label,omitempty" yaml:"label,omitempty"`
	Element    string         `json:"element,omitempty" yaml:"element,omitempty"`
	Props      map[string]any `json:"props,omitempty" yaml:"props,omitempty"`
}

// Attribute is one raw key=value pair as written by the author.
type Attribute struct {
	Key   string
	Value string
}

// Attributes keeps authoring order, which matters for set shorthand and for
// deriving an if test from the first attribute.
type Attributes []Attribute

// Get returns the raw value of key.
func (a Attributes) Get(key string) (string, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (a Attributes) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(attr.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(attr.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("attributes: expected object, got %v", tok)
	}
	out := Attributes{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("attributes: expected key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = append(out, Attribute{Key: key, Value: rawAttrValue(raw)})
	}
	*a = out
	return nil
}

// rawAttrValue keeps strings as written and renders any other JSON value as
// its literal text, so numbers and booleans still coerce later.
func rawAttrValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func (a Attributes) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, attr := range a {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: attr.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: attr.Value, Style: yaml.DoubleQuotedStyle},
		)
	}
	return n, nil
}

func (a *Attributes) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("attributes: expected mapping at line %d", n.Line)
	}
	out := Attributes{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		value := v.Value
		if v.Kind != yaml.ScalarNode {
			var decoded any
			if err := v.Decode(&decoded); err != nil {
				return err
			}
			b, err := json.Marshal(decoded)
			if err != nil {
				return err
			}
			value = string(b)
		}
		out = append(out, Attribute{Key: k.Value, Value: value})
	}
	*a = out
	return nil
}

// IsDirective reports whether n is a container, leaf or text directive.
func (n *Node) IsDirective() bool {
	switch n.Type {
	case TypeContainer, TypeLeaf, TypeTextDir:
		return true
	}
	return false
}

// LabelText returns the directive's bracketed argument. Leaf and text
// directives carry it as children; container directives as a leading label
// child.
func (n *Node) LabelText() string {
	if len(n.Children) == 0 {
		return ""
	}
	if n.Type == TypeContainer {
		if n.Children[0].Label {
			return strings.TrimSpace(Text(n.Children[0].Children))
		}
		return ""
	}
	return strings.TrimSpace(Text(n.Children))
}

// Body returns the children without the label pseudo-node.
func (n *Node) Body() []*Node {
	if len(n.Children) > 0 && n.Children[0].Label {
		return n.Children[1:]
	}
	if n.Type != TypeContainer {
		return nil
	}
	return n.Children
}

// Text concatenates the literal text below nodes.
func Text(nodes []*Node) string {
	var b strings.Builder
	var walk func([]*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			switch n.Type {
			case TypeText, TypeCode, TypeInline:
				if b.Len() > 0 && n.Type == TypeCode {
					b.WriteByte('\n')
				}
				b.WriteString(n.Value)
			default:
				if n.Type == TypeParagraph && b.Len() > 0 {
					b.WriteByte('\n')
				}
				walk(n.Children)
			}
		}
	}
	walk(nodes)
	return b.String()
}

// Clone deep-copies n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Attributes = append(Attributes(nil), n.Attributes...)
	out.Children = CloneAll(n.Children)
	if n.Props != nil {
		out.Props = make(map[string]any, len(n.Props))
		for k, v := range n.Props {
			out.Props[k] = v
		}
	}
	return &out
}

// CloneAll deep-copies a node list.
func CloneAll(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// NewText creates a text node.
func NewText(value string) *Node {
	return &Node{Type: TypeText, Value: value}
}

// NewHint creates a rendering-hint node for the external renderer.
func NewHint(element string, props map[string]any) *Node {
	return &Node{Type: TypeHint, Element: element, Props: props}
}

func (n *Node) String() string {
	if n.IsDirective() {
		return ":" + n.Name
	}
	return n.Type
}
