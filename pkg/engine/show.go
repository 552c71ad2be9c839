package engine

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/expr"
	"github.com/jwebster45206/campfire/pkg/state"
)

// Hermetic: no env, expandenv or clock access from author templates.
var templateFuncs = sprig.HermeticTxtFuncMap()

// showData is the template dot of a show format: the value itself plus the
// game data for cross references.
type showData struct {
	Value any
	Game  map[string]any
}

// handleShow renders a value as text: `:show[expr]`, `:show{key=path}`,
// optionally with a `format` template.
func handleShow(f *frame, n *directive.Node) directive.Result {
	src := n.LabelText()
	if src == "" {
		if key, ok := n.Attributes.Get("key"); ok {
			src = strings.TrimSpace(state.Unquote(key))
		}
	}
	if src == "" {
		f.fail(Malformed, n, "show requires an expression or key")
		return directive.Remove()
	}

	v := f.eval(src)
	text := display(v)
	format, ok := n.Attributes.Get("format")
	if !ok {
		return directive.Replace(directive.NewText(text))
	}
	format = state.Unquote(format)
	if !strings.Contains(format, "{{") {
		return directive.Replace(directive.NewText(format))
	}
	tmpl, err := template.New(src).Funcs(templateFuncs).Option("missingkey=zero").Parse(format)
	if err != nil {
		f.fail(Malformed, n, "show %s: parsing format: %v", src, err)
		return directive.Remove()
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, showData{Value: fromExpr(v), Game: f.store.Data()}); err != nil {
		f.fail(Malformed, n, "show %s: executing format: %v", src, err)
		return directive.Remove()
	}
	return directive.Replace(directive.NewText(buf.String()))
}

func display(v any) string {
	switch t := v.(type) {
	case expr.UndefinedType, nil:
		return ""
	case state.RangeValue:
		return expr.ToString(t.Value)
	}
	return expr.ToString(v)
}
