package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tally/internal/store"
)

// JournalSnapshot captures the journal of a scenario execution.
// Serialized with canonical JSON for deterministic comparison.
type JournalSnapshot struct {
	ScenarioName string        `json:"scenario_name"`
	Journal      []store.Event `json:"journal"`
}

// toCanonicalMap converts the snapshot to plain maps for canonical JSON.
// Recorded-at timestamps are left out; seq, kind, habit, date and payload
// fully describe an event.
func (s *JournalSnapshot) toCanonicalMap() (map[string]any, error) {
	events := make([]any, len(s.Journal))
	for i, ev := range s.Journal {
		payload, err := decodePayload(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("journal seq %d: %w", ev.Seq, err)
		}
		m := map[string]any{
			"seq":     ev.Seq,
			"kind":    ev.Kind,
			"date":    ev.Date,
			"payload": payload,
		}
		if ev.HabitID != "" {
			m["habit"] = ev.HabitID
		}
		events[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"journal":       events,
	}, nil
}

// MarshalJournal renders a scenario's journal as canonical JSON.
func MarshalJournal(name string, journal []store.Event) ([]byte, error) {
	snapshot := JournalSnapshot{ScenarioName: name, Journal: journal}
	m, err := snapshot.toCanonicalMap()
	if err != nil {
		return nil, err
	}
	return store.MarshalCanonical(m)
}

// RunWithGolden executes a scenario and compares its journal against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the journal doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result's journal against a
// golden file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalJournal(scenarioName, result.Journal)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
