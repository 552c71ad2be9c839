// Package cli implements the campfire command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/campfire/internal/story"
	"github.com/jwebster45206/campfire/pkg/engine"
	"github.com/jwebster45206/campfire/pkg/state"
	"github.com/jwebster45206/campfire/pkg/storage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose         bool
	Format          string // "json" | "text"
	MaxIncludeDepth int
	MaxIterations   int
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "campfire",
		Short: "Campfire directive engine",
		Long:  "Render and validate interactive fiction passages written with Campfire directives.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log engine activity to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().IntVar(&opts.MaxIncludeDepth, "max-include-depth", engine.DefaultMaxIncludeDepth, "include nesting limit")
	cmd.PersistentFlags().IntVar(&opts.MaxIterations, "max-iterations", engine.DefaultMaxIterations, "for loop iteration limit")

	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// newEngine builds a fresh engine over s with an in-memory blob store.
func (o *RootOptions) newEngine(s *story.Story, store *state.Store, stderr io.Writer) *engine.Engine {
	handler := slog.DiscardHandler
	if o.Verbose {
		handler = slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return engine.New(
		engine.WithLogger(slog.New(handler)),
		engine.WithBlobStore(storage.NewMemoryStore()),
		engine.WithPassages(s),
		engine.WithStore(store),
		engine.WithMaxIncludeDepth(o.MaxIncludeDepth),
		engine.WithMaxIterations(o.MaxIterations),
	)
}
