package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/campfire/internal/story"
	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/engine"
	"github.com/jwebster45206/campfire/pkg/expr"
)

const helpText = `Commands:
• /go <passage> - Leave the current passage and apply another
• /show <expr> - Evaluate an expression
• /state - Show game data
• /locks - Show locked keys
• /once - Show once keys
• /checkpoints - List checkpoints
• /errors - Show the session error log
• /passages - List passages
• /copy - Copy the save blob to the clipboard
• /help - Show this help
Anything else runs as eval statements.`

var titleCaser = cases.Title(language.English)

// entry is one block of console output.
type entry struct {
	title string
	body  string
	err   bool
}

// Session drives an engine from console input.
type Session struct {
	eng   *engine.Engine
	story *story.Story

	// copy is swapped in tests
	copy func(string) error
}

func NewSession(eng *engine.Engine, s *story.Story) *Session {
	return &Session{eng: eng, story: s, copy: clipboard.WriteAll}
}

// Title is the heading of the story, title cased.
func (s *Session) Title() string {
	if s.story == nil || s.story.Title == "" {
		return "CAMPFIRE"
	}
	return titleCaser.String(s.story.Title)
}

// Start applies the story's start passage.
func (s *Session) Start(ctx context.Context) []entry {
	if s.story == nil {
		return []entry{{title: "Campfire", body: "No story loaded. Type eval statements or /help."}}
	}
	return s.goTo(ctx, s.story.StartID())
}

// Handle runs one line of input.
func (s *Session) Handle(ctx context.Context, input string) []entry {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	if !strings.HasPrefix(input, "/") {
		return s.eval(ctx, input)
	}

	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case "/help":
		return []entry{{title: "Help", body: helpText}}
	case "/go":
		if arg == "" {
			return []entry{{title: "Error", body: "usage: /go <passage>", err: true}}
		}
		return s.goTo(ctx, arg)
	case "/show":
		return []entry{{title: arg, body: formatValue(s.eng.Evaluate(arg))}}
	case "/state":
		return []entry{{title: "Game Data", body: toJSON(s.eng.Store().Data())}}
	case "/locks":
		return []entry{{title: "Locked Keys", body: bulletList(s.eng.Store().LockedKeys())}}
	case "/once":
		return []entry{{title: "Once Keys", body: bulletList(s.eng.Store().OnceKeys())}}
	case "/checkpoints":
		return []entry{{title: "Checkpoints", body: s.checkpoints()}}
	case "/errors":
		return []entry{{title: "Error Log", body: formatErrors(s.eng.Errors())}}
	case "/passages":
		if s.story == nil {
			return []entry{{title: "Passages", body: "No story loaded."}}
		}
		return []entry{{title: "Passages", body: bulletList(s.story.IDs())}}
	case "/copy":
		if err := s.copy(toJSON(s.eng.SaveData())); err != nil {
			return []entry{{title: "Error", body: fmt.Sprintf("copy failed: %v", err), err: true}}
		}
		return []entry{{title: "Copied", body: "Save blob copied to the clipboard."}}
	}
	return []entry{{title: "Error", body: fmt.Sprintf("unknown command %s, try /help", cmd), err: true}}
}

func (s *Session) goTo(ctx context.Context, passageID string) []entry {
	res, err := s.eng.ApplyPassage(ctx, passageID)
	if err != nil {
		return []entry{{title: "Error", body: err.Error(), err: true}}
	}
	out := []entry{{title: titleCaser.String(passageID), body: strings.TrimSpace(directive.Text(res.Nodes))}}
	if len(res.Warnings) > 0 {
		out = append(out, entry{title: "Warnings", body: bulletList(res.Warnings)})
	}
	if len(res.Errors) > 0 {
		out = append(out, entry{title: "Errors", body: formatErrors(res.Errors), err: true})
	}
	return out
}

func (s *Session) eval(ctx context.Context, src string) []entry {
	errs := s.eng.Eval(ctx, src)
	if len(errs) > 0 {
		return []entry{{title: "Eval", body: formatErrors(errs), err: true}}
	}
	return []entry{{title: "Eval", body: "ok"}}
}

func (s *Session) checkpoints() string {
	ids := s.eng.Checkpoints().IDs()
	if len(ids) == 0 {
		return "None"
	}
	var b strings.Builder
	for _, id := range ids {
		cp, _ := s.eng.Checkpoints().Get(id)
		fmt.Fprintf(&b, "• %s @ %s", id, cp.CurrentPassageID)
		if cp.Label != "" {
			fmt.Fprintf(&b, " (%s)", cp.Label)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Sidebar renders the metadata panel.
func (s *Session) Sidebar() string {
	var b strings.Builder
	b.WriteString("Passage:\n")
	if p := s.eng.CurrentPassage(); p != "" {
		b.WriteString(p + "\n\n")
	} else {
		b.WriteString("none\n\n")
	}

	data := s.eng.Store().Data()
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("Variables:\n")
	if len(keys) == 0 {
		b.WriteString("None set\n")
	}
	for _, k := range keys {
		marker := ""
		if s.eng.Store().IsLocked(k) {
			marker = " 🔒"
		}
		fmt.Fprintf(&b, "• %s: %s%s\n", k, formatValue(data[k]), marker)
	}

	fmt.Fprintf(&b, "\nCheckpoints: %d\n", len(s.eng.Checkpoints().IDs()))
	fmt.Fprintf(&b, "Errors: %d\n", len(s.eng.Errors()))
	return b.String()
}

func formatValue(v any) string {
	switch v.(type) {
	case expr.UndefinedType:
		return "undefined"
	case string:
		return fmt.Sprintf("%q", v)
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
	return expr.ToString(v)
}

func formatErrors(errs []*engine.DirectiveError) string {
	if len(errs) == 0 {
		return "None"
	}
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	return bulletList(lines)
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return "• " + strings.Join(items, "\n• ")
}

func toJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(b)
}
