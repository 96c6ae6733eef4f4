package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/defgeneric/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Command groups shown in help.
const (
	groupDefinitions = "definitions"
	groupCalls       = "calls"
	groupJournal     = "journal"
)

// NewRootCommand creates the root command for the defgeneric CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "defgeneric",
		Short:   "Generic functions with multiple dispatch",
		Version: fmt.Sprintf("%s (ir %s)", ir.EngineVersion, ir.IRVersion),
		Long: `Define generic functions as CUE blocks of classes, instances and
methods, then call them: each call selects the applicable methods by
the classes of all its arguments and runs the most specific one.

Calls can be journaled to SQLite, traced frame by frame and replayed
against changed definitions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddGroup(
		&cobra.Group{ID: groupDefinitions, Title: "Definitions:"},
		&cobra.Group{ID: groupCalls, Title: "Calls:"},
		&cobra.Group{ID: groupJournal, Title: "Journal:"},
	)

	addToGroup(cmd, groupDefinitions,
		NewCompileCommand(opts),
		NewValidateCommand(opts),
		NewMethodsCommand(opts),
	)
	addToGroup(cmd, groupCalls,
		NewEvalCommand(opts),
		NewRunCommand(opts),
		NewTestCommand(opts),
	)
	addToGroup(cmd, groupJournal,
		NewTraceCommand(opts),
		NewReplayCommand(opts),
	)

	return cmd
}

func addToGroup(root *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.GroupID = group
		root.AddCommand(c)
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
