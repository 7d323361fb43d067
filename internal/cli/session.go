package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/store"
)

// session is an open database with an engine on top, ready for one command.
type session struct {
	engine    *engine.Engine
	store     *store.Store
	logger    *slog.Logger
	formatter *OutputFormatter
}

// newLogger writes text logs to w: warnings by default, debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

// newFormatter builds the output formatter for cmd.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openSession opens the database and builds the engine. With rollover set
// it also runs the daily check so the command sees today's state.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command, rollover bool) (*session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	cfg := opts.config()

	loc, err := cfg.Location()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid time zone", err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = engine.SystemClock{Location: loc}
	}

	path, err := cfg.DBPath()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to resolve database path", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create database directory", err)
	}

	engineOpts := []engine.Option{
		engine.WithClock(clock),
		engine.WithLogger(logger),
	}
	if opts.IDs != nil {
		engineOpts = append(engineOpts, engine.WithIDs(opts.IDs))
	}
	if opts.Rules != "" {
		src, err := os.ReadFile(opts.Rules)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read rules", err)
		}
		defs, err := engine.LoadRules(src, filepath.Base(opts.Rules))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid rules", err)
		}
		engineOpts = append(engineOpts, engine.WithRules(defs))
	}

	logger.Debug("opening database", "path", path)
	st, err := store.Open(path, store.WithLogger(logger), store.WithNow(clock.Now))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	eng, err := engine.New(st, engineOpts...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	s := &session{
		engine:    eng,
		store:     st,
		logger:    logger,
		formatter: newFormatter(opts, cmd),
	}

	if !rollover {
		return s, nil
	}
	rep, err := eng.Rollover.Run(ctx)
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitFailure, "rollover failed", err)
	}
	if rep.Ran {
		logger.Debug("rollover ran", "date", rep.Date, "previous", rep.Previous,
			"broken", len(rep.Broken), "perfect_week", rep.PerfectWeek)
	}
	return s, nil
}

// Close closes the database, logging rather than returning close errors.
func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// withSession opens a session, runs fn and closes the session.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, opts, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// pluralize returns "1 habit" or "n habits".
func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
