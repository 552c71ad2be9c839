package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/campfire/internal/story"
	"github.com/jwebster45206/campfire/pkg/engine"
	"github.com/jwebster45206/campfire/pkg/state"
)

// ErrValidationFailed is returned when any passage reports directive errors.
var ErrValidationFailed = errors.New("validation failed")

// PassageReport lists the problems found in one passage.
type PassageReport struct {
	PassageID string                   `json:"passageId"`
	Errors    []*engine.DirectiveError `json:"errors,omitempty"`
	Warnings  []string                 `json:"warnings,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Passages []PassageReport `json:"passages"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <story-file>",
		Short: "Apply every passage and report directive errors",
		Long: `Apply each passage of a story against its own fresh engine and report
every directive error and warning. Exits nonzero when any passage has errors.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	s, err := story.Load(path)
	if err != nil {
		return err
	}

	result := ValidationResult{Valid: true}
	for _, id := range s.IDs() {
		eng := opts.newEngine(s, state.NewStore(), cmd.ErrOrStderr())
		res, err := eng.ApplyPassage(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("validate %s: %w", id, err)
		}
		report := PassageReport{PassageID: id, Errors: res.Errors, Warnings: res.Warnings}
		if len(report.Errors) > 0 {
			result.Valid = false
		}
		result.Passages = append(result.Passages, report)
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		if err := writeJSON(w, result); err != nil {
			return err
		}
	} else {
		for _, p := range result.Passages {
			status := "ok"
			if len(p.Errors) > 0 {
				status = fmt.Sprintf("%d error(s)", len(p.Errors))
			}
			fmt.Fprintf(w, "%s: %s\n", p.PassageID, status)
			for _, e := range p.Errors {
				fmt.Fprintf(w, "  [%s] %s: %s\n", e.Kind, e.Directive, e.Message)
			}
			for _, warning := range p.Warnings {
				fmt.Fprintf(w, "  warning: %s\n", warning)
			}
		}
	}

	if !result.Valid {
		return ErrValidationFailed
	}
	return nil
}
