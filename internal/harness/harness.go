package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/testutil"
)

// Harness drives one scenario against a fresh engine.
type Harness struct {
	engine *engine.Engine
	clock  *testutil.Clock
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a settable clock
// and sequential habit ids (habit-1, habit-2, ...), so the same scenario
// always produces the same journal.
//
// Execution flow:
// 1. Create fresh in-memory database and engine
// 2. Execute setup steps; each must succeed
// 3. Execute flow steps with expect validation
// 4. Collect journal and final document
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	clock := testutil.NewClockOn(scenario.Start)
	if scenario.Time != "" {
		var hour, minute int
		if _, err := fmt.Sscanf(scenario.Time, "%d:%d", &hour, &minute); err != nil {
			return nil, fmt.Errorf("invalid time %q: %w", scenario.Time, err)
		}
		clock.SetTimeOfDay(hour, minute)
	}

	st, err := store.Open(":memory:", store.WithNow(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	opts := []engine.Option{
		engine.WithClock(clock),
		engine.WithIDs(testutil.NewSequentialIDs("habit")),
		engine.WithLogger(logger),
	}
	if scenario.Rules != "" {
		src, err := os.ReadFile(scenario.Rules)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules: %w", err)
		}
		defs, err := engine.LoadRules(src, filepath.Base(scenario.Rules))
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		opts = append(opts, engine.WithRules(defs))
	}

	eng, err := engine.New(st, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{engine: eng, clock: clock, logger: logger}

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}

	assertionErrors := EvaluateAssertions(result, scenario.Assertions)
	for _, errMsg := range assertionErrors {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSetup runs all setup steps. Any engine error aborts the run.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		date := h.today()
		outcome, value, err := h.invoke(ctx, step.Action, step.Args)
		if err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
		if outcome != CaseOK && outcome != CaseAlreadyCompleted {
			return fmt.Errorf("setup step %d (%s): unexpected case %s", i, step.Action, outcome)
		}

		result.AddStepTrace(TraceEvent{
			Phase:  "setup",
			Date:   date,
			Invoke: step.Action,
			Args:   step.Args,
			Case:   outcome,
			Result: value,
		})

		h.logger.Info("setup step completed", "step", i, "action", step.Action)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Expectation mismatches are recorded on the result and the flow continues.
// A returned error means the harness itself could not proceed.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		date := h.today()
		outcome, value, err := h.invoke(ctx, step.Invoke, step.Args)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}

		result.AddStepTrace(TraceEvent{
			Phase:  "flow",
			Date:   date,
			Invoke: step.Invoke,
			Args:   step.Args,
			Case:   outcome,
			Result: value,
		})

		switch {
		case step.Expect == nil:
			if outcome != CaseOK && outcome != CaseAlreadyCompleted {
				result.AddError(fmt.Sprintf("flow[%d] %s: unexpected case %s", i, step.Invoke, outcome))
			}
		case step.Expect.Case != outcome:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %s, got %s",
				i, step.Invoke, step.Expect.Case, outcome))
		case step.Expect.Result != nil:
			if path, ok := subsetMatch(step.Expect.Result, value); !ok {
				result.AddError(fmt.Sprintf("flow[%d] %s: result mismatch at %s\n  expected: %v\n  actual:   %v",
					i, step.Invoke, path, step.Expect.Result, value))
			}
		}

		h.logger.Info("flow step completed", "step", i, "action", step.Invoke, "case", outcome)
	}

	return nil
}

// invoke runs one action. Engine errors become their code as the case;
// anything else is returned as an error.
func (h *Harness) invoke(ctx context.Context, name string, args map[string]any) (string, any, error) {
	fn, ok := actions[name]
	if !ok {
		return "", nil, fmt.Errorf("unknown action %q", name)
	}

	outcome, value, err := fn(ctx, h, argMap(args))
	if err != nil {
		var engErr *engine.Error
		if errors.As(err, &engErr) {
			return string(engErr.Code), map[string]any{"message": engErr.Message}, nil
		}
		return "", nil, err
	}

	generic, err := toGeneric(value)
	if err != nil {
		return "", nil, fmt.Errorf("encode result: %w", err)
	}
	return outcome, generic, nil
}

// collect stores the journal and final document on the result.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	events, err := h.engine.Events(ctx, store.EventFilter{})
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	result.Journal = events

	doc, err := h.engine.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	state, err := toGeneric(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if m, ok := state.(map[string]any); ok {
		result.State = m
	}
	return nil
}

// today is the engine's current local date.
func (h *Harness) today() model.Date {
	return h.engine.Today()
}
