package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tally/internal/model"
)

// Scenario is a day-by-day script run against a fresh engine.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the first simulated day, YYYY-MM-DD.
	Start string `yaml:"start"`

	// Time is the wall-clock time of day, HH:MM. Defaults to 12:00.
	Time string `yaml:"time,omitempty"`

	// Rules optionally points at a CUE achievement table replacing the
	// built-in one. Relative to the scenario file when loaded with a base path.
	Rules string `yaml:"rules,omitempty"`

	// Setup contains steps run before the flow. Each must succeed.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow contains the scenario steps with optional expectations.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final journal and document.
	// Supported types: journal_contains, journal_order, journal_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// ActionStep is one setup step.
type ActionStep struct {
	// Action is the operation name (e.g., "create").
	Action string `yaml:"action"`

	// Args contains the operation arguments.
	Args map[string]any `yaml:"args"`
}

// FlowStep is one flow step with an optional expectation.
type FlowStep struct {
	// Invoke is the operation name.
	Invoke string `yaml:"invoke"`

	// Args contains the operation arguments.
	Args map[string]any `yaml:"args"`

	// Expect specifies the expected outcome. If nil, any non-error outcome
	// passes.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Case is "ok", "already_completed" or an engine error code
	// (e.g., "NOT_COMPLETED_TODAY").
	Case string `yaml:"case"`

	// Result is matched as a subset of the step's JSON result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the journal or final document.
type Assertion struct {
	// Type specifies the assertion type:
	// - "journal_contains": an event of Kind whose payload contains Payload
	// - "journal_order": the first events of Kinds appear in order
	// - "journal_count": exactly Count events of Kind
	// - "final_state": a document section matches Expect
	Type string `yaml:"type"`

	// Kind is the event kind (journal_contains, journal_count).
	Kind string `yaml:"kind,omitempty"`

	// Habit restricts journal assertions to one habit id.
	Habit string `yaml:"habit,omitempty"`

	// Payload is the expected payload subset (journal_contains).
	Payload map[string]any `yaml:"payload,omitempty"`

	// Kinds is the expected order (journal_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Count is the expected number of events (journal_count).
	Count int `yaml:"count,omitempty"`

	// State names a top-level document field: habits, stats, triggers,
	// profile, achievements, ... (final_state).
	State string `yaml:"state,omitempty"`

	// Where selects exactly one element when State is a list (final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values, subset match (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertJournalContains = "journal_contains"
	AssertJournalOrder    = "journal_order"
	AssertJournalCount    = "journal_count"
	AssertFinalState      = "final_state"
)

var timeOfDay = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the rules path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) && basePath != "" {
		scenario.Rules = filepath.Join(basePath, scenario.Rules)
	}
	if scenario.Rules != "" {
		if _, err := os.Stat(scenario.Rules); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: rules file not found: %s", scenario.Rules)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Start == "" {
		return fmt.Errorf("start date is required")
	}
	if _, err := model.ParseDate(s.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	if s.Time != "" && !timeOfDay.MatchString(s.Time) {
		return fmt.Errorf("time %q must be HH:MM", s.Time)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Action == "" {
			return fmt.Errorf("setup[%d]: action is required", i)
		}
		if _, ok := actions[step.Action]; !ok {
			return fmt.Errorf("setup[%d]: unknown action %q", i, step.Action)
		}
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if _, ok := actions[step.Invoke]; !ok {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertJournalContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for journal_contains", index)
		}
	case AssertJournalOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for journal_order", index)
		}
	case AssertJournalCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for journal_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal_count", index)
		}
	case AssertFinalState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
