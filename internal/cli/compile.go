package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/defgeneric/internal/compiler"
	"github.com/roach88/defgeneric/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled definitions and their content hash.
type CompilationResult struct {
	Hash        string          `json:"hash"`
	Definitions *ir.Definitions `json:"definitions"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <defs-dir>",
		Short: "Compile CUE definitions to canonical IR",
		Long: `Compile CUE class, instance and generic blocks to canonical IR.

Runs every validate check, then prints the definitions hash that
journaled calls are stamped with. With -o the IR is written as JSON;
classes are ordered parents first and methods by index.

Exit codes:
  0 - Compiled
  2 - Definitions invalid or output could not be written`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, defsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	checked, defs, err := checkDefinitions(defsDir, formatter)
	if err != nil {
		code, message := ErrCodeGeneric, err.Error()
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			code, message = loadErr.Code, loadErr.Message
		}
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, code+": "+message)
	}
	if !checked.Valid {
		return compileFailed(formatter, checked.Errors)
	}

	hash, err := ir.DefinitionsHash(defs)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("hashing definitions: %v", err), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	result := &CompilationResult{Hash: hash, Definitions: defs}

	if opts.Output != "" {
		if err := writeIR(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return NewExitError(ExitCommandError, ErrCodeWriteFailed+": "+err.Error())
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	writeCompiled(formatter.Writer, result, checked, opts.Output)
	return nil
}

func writeCompiled(w io.Writer, result *CompilationResult, counts ValidationResult, outputFile string) {
	fmt.Fprintf(w, "✓ Compiled %d class(es), %d instance(s), %d generic(s) with %d method(s)\n\n",
		counts.Classes, counts.Instances, counts.Generics, counts.Methods)

	if classes := result.Definitions.Classes; len(classes) > 0 {
		fmt.Fprintln(w, "Classes:")
		for _, c := range classes {
			name := c.Name
			if c.Abstract {
				name += " (abstract)"
			}
			fmt.Fprintf(w, "  %s: [%s]\n", name, strings.Join(c.Superclasses, " "))
		}
		fmt.Fprintln(w)
	}

	if generics := result.Definitions.Generics; len(generics) > 0 {
		fmt.Fprintln(w, "Generics:")
		for _, g := range generics {
			fmt.Fprintf(w, "  %s: %d method(s)\n", g.Name, len(g.Methods))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Hash: %s\n", result.Hash)
	if outputFile != "" {
		fmt.Fprintf(w, "Wrote canonical IR to %s\n", outputFile)
	}
}

// compileFailed reports every problem found. Unlike validate, a failed
// compile is a command error: there is no IR to hand to the engine.
func compileFailed(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failed := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		all := make([]CLIError, len(errs))
		for i, e := range errs {
			all[i] = CLIError{Code: e.Code, Message: e.Message, Details: e.Field}
		}
		if err := formatter.encode(CLIResponse{Status: "error", Error: &all[0], Data: all}); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		if e.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", e.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", e.Code, e.Field, e.Message)
	}
	return failed
}

// writeIR writes the result indented; the hash inside it is computed over
// the canonical form, not these bytes.
func writeIR(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	return nil
}
