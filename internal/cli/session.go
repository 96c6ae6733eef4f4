package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/defgeneric/internal/classes"
	"github.com/roach88/defgeneric/internal/engine"
	"github.com/roach88/defgeneric/internal/expr"
	"github.com/roach88/defgeneric/internal/ir"
	"github.com/roach88/defgeneric/internal/store"
)

// session is one engine loaded with definitions, optionally journaling
// to a store.
type session struct {
	engine *engine.Engine
	eval   *expr.Evaluator
	store  *store.Store // nil when not journaling
	hash   string
}

// sessionConfig carries what commands may override when opening a session.
type sessionConfig struct {
	Database string // empty disables journaling
	MaxDepth int
	Tokens   engine.CallTokenGenerator
	Logger   *slog.Logger
}

// openSession installs defs into a new engine. With a database, the
// definitions are recorded, every frame is journaled and the logical
// clock resumes after the last recorded sequence number.
func openSession(ctx context.Context, defs *ir.Definitions, cfg sessionConfig) (*session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []engine.EngineOption{engine.WithLogger(logger)}
	if cfg.MaxDepth > 0 {
		opts = append(opts, engine.WithMaxDepth(cfg.MaxDepth))
	}
	if cfg.Tokens != nil {
		opts = append(opts, engine.WithTokenGenerator(cfg.Tokens))
	}

	s := &session{}
	if cfg.Database != "" {
		st, err := store.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.store = st

		hash, err := st.WriteDefinitions(ctx, defs)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.hash = hash

		last, err := st.GetLastSeq(ctx)
		if err != nil {
			s.Close()
			return nil, err
		}
		logger.Debug("journal opened", "db", cfg.Database, "definitions", hash, "last_seq", last)
		opts = append(opts, engine.WithJournal(st), engine.WithClock(engine.NewClockAt(last)))
	}

	s.engine, s.eval = expr.NewEngine(classes.New(classes.WithLogger(logger)), opts...)
	if err := expr.Install(s.engine, defs); err != nil {
		s.Close()
		return nil, fmt.Errorf("install definitions: %w", err)
	}
	return s, nil
}

// Close releases the store, if any.
func (s *session) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
		s.store = nil
	}
}

// newLogger builds the text logger commands write diagnostics with.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
