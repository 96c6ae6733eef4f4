package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/defgeneric/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	MaxDepth int

	// TokenGenerator allows overriding the call token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	TokenGenerator engine.CallTokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <defs-dir>",
		Short: "Start an interactive engine with definitions loaded",
		Long: `Start the generic function engine with definitions loaded and read
expressions from standard input, one per line.

Each line is evaluated as a top-level call and its value printed.
Lines starting with ";" are comments. An interrupt (Ctrl-C) halts the
running evaluation; the next line clears the halt. A second interrupt
while idle, or end of input, stops the engine.

Example:
  defgeneric run --db ./calls.db ./defs
  echo '(describe [c1])' | defgeneric run ./defs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for journaling")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "nested dispatch limit (0 for the engine default)")

	return cmd
}

func runEngine(opts *RunOptions, defsDir string, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	logger.Info("loading definitions", "dir", defsDir)
	defs, err := loadValidDefinitions(defsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load definitions", err)
	}
	logger.Info("definitions loaded", "classes", len(defs.Classes), "generics", len(defs.Generics))

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sess, err := openSession(ctx, defs, sessionConfig{
		Database: opts.Database,
		MaxDepth: opts.MaxDepth,
		Tokens:   opts.TokenGenerator,
		Logger:   logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	defer sess.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	busy := make(chan bool, 1)
	busy <- false
	go func() {
		for {
			select {
			case sig := <-sigChan:
				running := <-busy
				busy <- running
				if running && sig == os.Interrupt {
					logger.Info("interrupt, halting evaluation")
					sess.engine.Halt()
					continue
				}
				logger.Info("received signal, shutting down", "signal", sig)
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	out := &OutputFormatter{Format: "text", Writer: cmd.OutOrStdout()}
	fmt.Fprintln(out.Writer, "Engine started. Reading expressions...")

	for {
		select {
		case <-ctx.Done():
			logger.Info("engine stopped")
			return nil
		case line, ok := <-lines:
			if !ok {
				logger.Info("end of input, engine stopped")
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, ";") {
				continue
			}

			<-busy
			busy <- true
			sess.engine.ClearHalt()
			v, err := sess.eval.Eval(ctx, line)
			<-busy
			busy <- false

			if err != nil {
				logger.Debug("evaluation failed", "expression", line, "error", err)
				_ = out.Failure(err)
				continue
			}
			_ = out.Success(v)
		}
	}
}
