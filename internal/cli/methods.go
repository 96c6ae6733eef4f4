package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/defgeneric/internal/engine"
	"github.com/roach88/defgeneric/internal/ir"
)

// MethodsOptions holds flags for the methods command.
type MethodsOptions struct {
	*RootOptions
	Preview string // arguments to preview, in expression syntax
}

// MethodsResult lists the methods of one generic function.
type MethodsResult struct {
	Generic    string              `json:"generic"`
	Methods    []engine.MethodInfo `json:"methods"`
	Preview    ir.IRArray          `json:"preview_args,omitempty"`
	Applicable []engine.MethodInfo `json:"applicable,omitempty"`
}

// NewMethodsCommand creates the methods command.
func NewMethodsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MethodsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "methods <defs-dir> <generic>",
		Short: "List the methods of a generic function",
		Long: `List the methods of a generic function in precedence order with
their parameter restrictions.

With --preview, the arguments are evaluated and the methods applicable
to them are listed in the order a call would try them. Guards are
evaluated; bodies are not.

Examples:
  defgeneric methods ./defs area
  defgeneric methods ./defs describe --preview "[c1]"
  defgeneric methods ./defs area --preview "(create$ 1 2)"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMethods(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Preview, "preview", "", "arguments to list applicable methods for")

	return cmd
}

func runMethods(opts *MethodsOptions, defsDir, generic string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	defs, err := loadValidDefinitions(defsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load definitions", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := openSession(ctx, defs, sessionConfig{Logger: newLogger(cmd.ErrOrStderr(), opts.Verbose)})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	defer sess.Close()

	methods, err := sess.engine.Methods(generic)
	if err != nil {
		_ = formatter.Failure(err)
		return NewExitError(ExitFailure, err.Error())
	}
	result := MethodsResult{Generic: generic, Methods: methods}

	if opts.Preview != "" {
		v, err := sess.eval.Eval(ctx, "(create$ "+opts.Preview+")")
		if err != nil {
			_ = formatter.Error(errorCode(err), fmt.Sprintf("preview arguments: %v", err), nil)
			return NewExitError(ExitFailure, err.Error())
		}
		result.Preview = v.(ir.IRArray)

		applicable, err := sess.engine.Preview(ctx, generic, result.Preview)
		if err != nil {
			_ = formatter.Failure(err)
			return NewExitError(ExitFailure, err.Error())
		}
		result.Applicable = applicable
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, m := range result.Methods {
		fmt.Fprintln(w, m.Signature())
	}
	fmt.Fprintf(w, "For a total of %d method(s).\n", len(result.Methods))

	if opts.Preview != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Applicable to %s:\n", ir.Format(result.Preview))
		if len(result.Applicable) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, m := range result.Applicable {
			fmt.Fprintf(w, "  %s\n", m.Signature())
		}
	}
	return nil
}
