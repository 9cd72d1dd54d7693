package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/qgraph/internal/builder"
	"github.com/roach88/qgraph/internal/connector/sqlite"
	"github.com/roach88/qgraph/internal/engine"
	"github.com/roach88/qgraph/internal/request"
	"github.com/roach88/qgraph/internal/schema"
)

// loadSchema compiles the schema at path, a CUE file or a directory of
// them. Failures exit with ExitFailure; a missing path is a command error.
func loadSchema(path string) (*schema.Schema, error) {
	s, err := schema.Load(path)
	if err == nil {
		return s, nil
	}
	if le, ok := err.(*schema.LoadError); ok && le.Code == schema.ErrCodeNotFound {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	return nil, WrapExitError(ExitFailure, "invalid schema", err)
}

// loadRequest parses the request document at path, or stdin for "-".
func loadRequest(path string, stdin io.Reader) (*request.Document, error) {
	if path != "-" {
		if _, err := os.Stat(path); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read request", err)
		}
		doc, err := request.LoadDocument(path)
		if err != nil {
			return nil, WrapExitError(ExitFailure, "invalid request", err)
		}
		return doc, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read request", err)
	}
	doc, err := request.ParseDocument(data)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "invalid request", err)
	}
	return doc, nil
}

// newLogger returns the logger commands hand to the engine and connector.
// Debug records (statements, built graphs) show with --verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// session is an open database with an engine over it.
type session struct {
	db     *sqlite.Connector
	engine *engine.Engine
}

func (s *session) Close() error {
	return s.db.Close()
}

type sessionConfig struct {
	dbPath    string
	bootstrap bool
	forceTx   bool
	logger    *slog.Logger
}

// openSession opens the database, creates the tables when asked and
// builds an engine for s.
func openSession(ctx context.Context, s *schema.Schema, cfg sessionConfig) (*session, error) {
	db, err := sqlite.Open(cfg.dbPath, sqlite.WithLogger(cfg.logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	if cfg.bootstrap {
		if err := db.Bootstrap(ctx, s); err != nil {
			db.Close()
			return nil, WrapExitError(ExitCommandError, "failed to bootstrap database", err)
		}
	}
	eng := engine.New(db, builder.NewQuerySchema(s, builder.WithLogger(cfg.logger)),
		engine.WithLogger(cfg.logger),
		engine.WithForceTransactions(cfg.forceTx))
	return &session{db: db, engine: eng}, nil
}
