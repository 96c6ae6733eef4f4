package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/defgeneric/internal/compiler"
	"github.com/roach88/defgeneric/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Classes   int                        `json:"classes"`
	Instances int                        `json:"instances"`
	Generics  int                        `json:"generics"`
	Methods   int                        `json:"methods"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <defs-dir>",
		Short: "Validate definitions without full compilation",
		Long: `Validate CUE class, instance and generic blocks without producing IR.

Checks block shapes, inheritance (unknown superclasses, cycles),
instance classes, parameter restrictions and that every guard and
body parses. All problems are reported, not just the first.

Exit codes:
  0 - Definitions are valid
  1 - Validation errors were found
  2 - Command error (directory missing, CUE does not build, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, defsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, _, err := checkDefinitions(defsDir, formatter)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, loadErr.Error())
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	if result.Valid {
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "✓ All definitions valid (%d classes, %d instances, %d generics, %d methods)\n",
			result.Classes, result.Instances, result.Generics, result.Methods)
		return nil
	}

	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	if formatter.Format == "json" {
		first := result.Errors[0]
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: first.Code, Message: first.Message},
		}); err != nil {
			return err
		}
		return failed
	}

	writeValidationErrors(formatter.Writer, result.Errors)
	return failed
}

// checkDefinitions loads defsDir and runs every check over it. Block
// shape problems found while loading are returned as validation errors;
// only a directory or CUE build failure is returned as err.
func checkDefinitions(defsDir string, formatter *OutputFormatter) (ValidationResult, *ir.Definitions, error) {
	loaded, loadErrors := LoadDefinitions(defsDir, LoadModeCollectAll)
	if loaded == nil {
		if len(loadErrors) == 0 {
			return ValidationResult{}, nil, fmt.Errorf("no definitions loaded from %s", defsDir)
		}
		return ValidationResult{}, nil, loadErrors[0]
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, defsDir)

	defs := loaded.Definitions
	result := ValidationResult{
		Classes:   len(defs.Classes),
		Instances: len(defs.Instances),
		Generics:  len(defs.Generics),
	}
	for _, g := range defs.Generics {
		result.Methods += len(g.Methods)
		formatter.VerboseLog("Checking generic %s (%d method(s))", g.Name, len(g.Methods))
	}

	result.Errors = compiler.Validate(defs)
	for _, err := range loadErrors {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			continue
		}
		line := 0
		if loadErr.Pos.IsValid() {
			line = loadErr.Pos.Line()
		}
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    line,
		})
	}
	slices.SortStableFunc(result.Errors, byLine)

	result.Valid = len(result.Errors) == 0
	return result, defs, nil
}

// byLine orders errors by source line; errors without a line go last.
func byLine(a, b compiler.ValidationError) int {
	switch {
	case a.Line == b.Line:
		return 0
	case a.Line == 0:
		return 1
	case b.Line == 0:
		return -1
	default:
		return a.Line - b.Line
	}
}

func writeValidationErrors(w io.Writer, errs []compiler.ValidationError) {
	fmt.Fprintf(w, "✗ Validation failed: %d error(s)\n\n", len(errs))
	for _, e := range errs {
		loc := "-"
		if e.Line > 0 {
			loc = fmt.Sprintf("line %d", e.Line)
		}
		fmt.Fprintf(w, "  %-8s %s %s: %s\n", loc, e.Code, e.Field, e.Message)
	}
}
