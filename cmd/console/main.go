package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/campfire/internal/config"
	"github.com/jwebster45206/campfire/internal/story"
	"github.com/jwebster45206/campfire/pkg/engine"
	"github.com/jwebster45206/campfire/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	storyPath := cfg.StoryPath
	if len(os.Args) > 1 {
		storyPath = os.Args[1]
	}

	var s *story.Story
	opts := []engine.Option{
		// The TUI owns the terminal, so engine logs are discarded.
		engine.WithLogger(slog.New(slog.DiscardHandler)),
		engine.WithBlobStore(storage.NewMemoryStore()),
		engine.WithMaxIncludeDepth(cfg.MaxIncludeDepth),
		engine.WithMaxIterations(cfg.MaxLoopIterations),
		engine.WithSaveKey(cfg.SaveKey),
	}
	if storyPath != "" {
		s, err = story.Load(storyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load story: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, engine.WithPassages(s))
	}

	var passages []string
	if s != nil {
		passages = s.IDs()
	}

	p := tea.NewProgram(NewConsoleUI(NewSession(engine.New(opts...), s), passages),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
