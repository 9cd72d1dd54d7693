package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/qgraph/internal/builder"
	"github.com/roach88/qgraph/internal/connector/sqlite"
	"github.com/roach88/qgraph/internal/engine"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/response"
	"github.com/roach88/qgraph/internal/schema"
	"github.com/roach88/qgraph/internal/testutil"
)

// Harness runs one scenario against its own database with a fixed clock
// and fixed uuid and request id sequences.
type Harness struct {
	engine *engine.Engine
	rec    *testutil.Recorder
	logger *slog.Logger
}

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes engine logs of the run to l. Runs are silent by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Run executes a scenario and returns its result. An error means the
// scenario could not run at all: a broken schema or a failing setup.
// Failed expectations are reported in the result.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Result, error) {
	cfg := &runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(cfg)
	}

	s, err := loadSchema(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	dir, err := os.MkdirTemp("", "qgraph-scenario-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	db, err := sqlite.Open(filepath.Join(dir, "scenario.db"), sqlite.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := db.Bootstrap(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to bootstrap database: %w", err)
	}

	rec := testutil.NewRecorder(db)
	qs := builder.NewQuerySchema(s,
		builder.WithClock(testutil.NewClock().Now),
		builder.WithUUIDs(testutil.NewIDs().Next),
		builder.WithLogger(cfg.logger))
	h := &Harness{
		engine: engine.New(rec, qs,
			engine.WithLogger(cfg.logger),
			engine.WithRequestIDs(testutil.NewIDs()),
			engine.WithMaxConcurrency(1)),
		rec:    rec,
		logger: cfg.logger,
	}

	if err := h.executeSetup(ctx, sc); err != nil {
		return nil, err
	}
	result := NewResult()
	h.executeSteps(ctx, sc, result)

	for i, a := range sc.Assertions {
		if err := h.evaluate(ctx, result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

func loadSchema(sc *Scenario) (*schema.Schema, error) {
	if sc.SchemaSource != "" {
		return schema.CompileString(sc.SchemaSource)
	}
	return schema.Load(sc.Schema)
}

func (h *Harness) executeSetup(ctx context.Context, sc *Scenario) error {
	for i, doc := range sc.setup {
		if _, err := h.engine.ExecuteDocument(ctx, doc); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	h.rec.Reset()
	return nil
}

// executeSteps runs every step, even after a failed expectation, so the
// trace always covers the whole scenario.
func (h *Harness) executeSteps(ctx context.Context, sc *Scenario, result *Result) {
	for i, step := range sc.Steps {
		v, err := h.engine.ExecuteDocument(ctx, step.doc)
		for _, stmt := range h.rec.Log() {
			result.Trace = append(result.Trace, TraceEvent{Step: i, Type: EventStatement, Text: stmt})
		}
		h.rec.Reset()

		var code string
		if err != nil {
			ee, ok := engine.AsError(err)
			if !ok {
				result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
				continue
			}
			code = string(ee.Code)
			result.Trace = append(result.Trace, TraceEvent{Step: i, Type: EventError, Text: code})
		} else {
			result.Trace = append(result.Trace, TraceEvent{Step: i, Type: EventResponse, Value: response.ToAny(v)})
		}
		h.logger.Debug("scenario step completed", "step", i, "name", step.Name, "code", code)

		if msg := checkExpect(step.Expect, v, err, code); msg != "" {
			result.AddError(fmt.Sprintf("steps[%d]: %s", i, msg))
		}
	}
}

func checkExpect(exp *Expect, v response.Value, err error, code string) string {
	switch {
	case exp != nil && exp.Error != "":
		if err == nil {
			return fmt.Sprintf("expected error %s, got success", exp.Error)
		}
		if code != exp.Error {
			return fmt.Sprintf("expected error %s, got %v", exp.Error, err)
		}
		return ""
	case err != nil:
		return fmt.Sprintf("unexpected error: %v", err)
	case exp != nil && exp.Result != nil:
		want, convErr := ir.FromAny(exp.Result)
		if convErr != nil {
			return fmt.Sprintf("expected result: %v", convErr)
		}
		got, convErr := ir.FromAny(response.ToAny(v))
		if convErr != nil {
			return fmt.Sprintf("response: %v", convErr)
		}
		if m := matchSubset(got, want, "$"); m != nil {
			return "result " + m.String()
		}
	}
	return ""
}
