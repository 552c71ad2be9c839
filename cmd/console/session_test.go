package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/campfire/internal/story"
	"github.com/jwebster45206/campfire/pkg/engine"
)

const consoleStory = `
title: the lantern room
start: hall
passages:
  hall:
    - {type: text, value: "A long hall. "}
    - type: leafDirective
      name: set
      attributes: {key: oil, value: "3"}
    - type: leafDirective
      name: checkpoint
      children: [{type: text, value: hall}]
  attic:
    - {type: text, value: "Dust."}
    - type: leafDirective
      name: set
`

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := story.ParseYAML([]byte(consoleStory))
	require.NoError(t, err)
	eng := engine.New(
		engine.WithLogger(slog.New(slog.DiscardHandler)),
		engine.WithPassages(s),
	)
	return NewSession(eng, s)
}

func TestSession_Start(t *testing.T) {
	s := newTestSession(t)
	assert.Equal(t, "The Lantern Room", s.Title())

	out := s.Start(context.Background())
	require.Len(t, out, 1)
	assert.Equal(t, "Hall", out[0].title)
	assert.Equal(t, "A long hall.", out[0].body)
	assert.Contains(t, s.Sidebar(), "• oil: 3")
	assert.Contains(t, s.Sidebar(), "Checkpoints: 1")
}

func TestSession_Handle(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	s.Start(ctx)

	tests := []struct {
		name  string
		input string
		title string
		body  string
		err   bool
	}{
		{name: "help", input: "/help", title: "Help", body: helpText},
		{name: "show", input: "/show oil * 2", title: "oil * 2", body: "6"},
		{name: "show undefined", input: "/show nope", title: "nope", body: "undefined"},
		{name: "eval", input: "state.set('torch', 'lit', {lock: true})", title: "Eval", body: "ok"},
		{name: "locks", input: "/locks", title: "Locked Keys", body: "• torch"},
		{name: "once", input: "/once", title: "Once Keys", body: "None"},
		{name: "checkpoints", input: "/checkpoints", title: "Checkpoints", body: "• hall @ hall"},
		{name: "passages", input: "/passages", title: "Passages", body: "• attic\n• hall"},
		{name: "go without id", input: "/go", title: "Error", body: "usage: /go <passage>", err: true},
		{name: "unknown", input: "/dance", title: "Error", body: "unknown command /dance, try /help", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.Handle(ctx, tt.input)
			require.NotEmpty(t, out)
			assert.Equal(t, tt.title, out[0].title)
			assert.Equal(t, tt.body, out[0].body)
			assert.Equal(t, tt.err, out[0].err)
		})
	}
}

func TestSession_GoReportsErrors(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	out := s.Handle(ctx, "/go attic")
	require.Len(t, out, 2)
	assert.Equal(t, "Attic", out[0].title)
	assert.Equal(t, "Dust.", out[0].body)
	assert.True(t, out[1].err)
	assert.Contains(t, out[1].body, "[malformed]")

	log := s.Handle(ctx, "/errors")
	assert.Contains(t, log[0].body, "[malformed]")

	out = s.Handle(ctx, "/go cellar")
	require.Len(t, out, 1)
	assert.True(t, out[0].err)
}

func TestSession_Copy(t *testing.T) {
	s := newTestSession(t)
	s.Start(context.Background())

	var copied string
	s.copy = func(text string) error {
		copied = text
		return nil
	}
	out := s.Handle(context.Background(), "/copy")
	assert.Equal(t, "Copied", out[0].title)
	assert.Contains(t, copied, `"currentPassageId": "hall"`)

	s.copy = func(string) error { return errors.New("no clipboard") }
	out = s.Handle(context.Background(), "/copy")
	assert.True(t, out[0].err)
	assert.Contains(t, out[0].body, "no clipboard")
}
