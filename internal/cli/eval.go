package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/defgeneric/internal/engine"
	"github.com/roach88/defgeneric/internal/ir"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Database string
	MaxDepth int

	// TokenGenerator allows overriding the call token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	TokenGenerator engine.CallTokenGenerator
}

// EvalResult is the outcome of one top-level expression.
type EvalResult struct {
	Expression string    `json:"expression"`
	Result     string    `json:"result,omitempty"`
	Error      *CLIError `json:"error,omitempty"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <defs-dir> <expression>...",
		Short: "Evaluate expressions against definitions",
		Long: `Evaluate one or more expressions as top-level calls.

Definitions are loaded and validated first. Expressions run in order
against one engine; a failing expression does not stop the rest.
With --db every dispatch frame is journaled for trace and replay.

Example:
  defgeneric eval ./defs '(describe [c1])' '(area [b1])'
  defgeneric eval ./defs --db ./calls.db '(describe [c1])'`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for journaling")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "nested dispatch limit (0 for the engine default)")

	return cmd
}

func runEval(opts *EvalOptions, defsDir string, exprs []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	defs, err := loadValidDefinitions(defsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load definitions", err)
	}

	sess, err := openSession(ctx, defs, sessionConfig{
		Database: opts.Database,
		MaxDepth: opts.MaxDepth,
		Tokens:   opts.TokenGenerator,
		Logger:   newLogger(cmd.ErrOrStderr(), opts.Verbose),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	defer sess.Close()

	results := make([]EvalResult, 0, len(exprs))
	failed := 0
	for _, src := range exprs {
		res := EvalResult{Expression: src}
		v, err := sess.eval.Eval(ctx, src)
		if err != nil {
			res.Error = failureOf(err)
			failed++
		} else {
			res.Result = ir.Format(v)
		}
		results = append(results, res)
	}

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: results}
		if failed > 0 {
			response.Status = "error"
			response.Error = &CLIError{Code: "E_EVAL", Message: fmt.Sprintf("%d expression(s) failed", failed)}
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, res := range results {
			if res.Error != nil {
				fmt.Fprintf(w, "Error [%s]: %s\n", res.Error.Code, res.Error.Message)
				continue
			}
			fmt.Fprintln(w, res.Result)
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d expression(s) failed", failed))
	}
	return nil
}
