package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/campfire/internal/story"
	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/engine"
	"github.com/jwebster45206/campfire/pkg/state"
)

// RenderOutput is the json form of a render.
type RenderOutput struct {
	PassageID string                   `json:"passageId"`
	Text      string                   `json:"text"`
	Nodes     []*directive.Node        `json:"nodes"`
	GameData  map[string]any           `json:"gameData"`
	Errors    []*engine.DirectiveError `json:"errors"`
	Warnings  []string                 `json:"warnings"`
}

type renderOptions struct {
	statePath string
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <story-file> [passage-id]",
		Short: "Apply one passage and print the result",
		Long: `Apply a passage of a story against a fresh engine and print the
transformed content, the resulting game data, and any directive errors.

The passage defaults to the story's start passage. --state seeds the game
data from a JSON object file.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(rootOpts, opts, args, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.statePath, "state", "", "JSON file with initial game data")
	return cmd
}

func runRender(rootOpts *RootOptions, opts *renderOptions, args []string, cmd *cobra.Command) error {
	s, err := story.Load(args[0])
	if err != nil {
		return err
	}
	passageID := s.StartID()
	if len(args) == 2 {
		passageID = args[1]
	}
	if passageID == "" {
		return fmt.Errorf("no passage given and %s has no start passage", args[0])
	}

	store := state.NewStore()
	if opts.statePath != "" {
		data, err := readGameData(opts.statePath)
		if err != nil {
			return err
		}
		store = state.NewStoreFrom(state.Snapshot{GameData: data})
	}

	eng := rootOpts.newEngine(s, store, cmd.ErrOrStderr())
	res, err := eng.ApplyPassage(cmd.Context(), passageID)
	if err != nil {
		return fmt.Errorf("render %s: %w", passageID, err)
	}

	out := RenderOutput{
		PassageID: passageID,
		Text:      directive.Text(res.Nodes),
		Nodes:     res.Nodes,
		GameData:  eng.Store().Data(),
		Errors:    res.Errors,
		Warnings:  res.Warnings,
	}
	if rootOpts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	return writeRenderText(cmd.OutOrStdout(), out)
}

func readGameData(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("state file %s must hold a JSON object: %w", path, err)
	}
	return data, nil
}

func writeRenderText(w io.Writer, out RenderOutput) error {
	fmt.Fprintln(w, out.Text)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "game data:")
	b, err := json.MarshalIndent(out.GameData, "  ", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  %s\n", b)
	for _, warning := range out.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	for _, e := range out.Errors {
		fmt.Fprintf(w, "error [%s] %s: %s\n", e.Kind, e.Directive, e.Message)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
