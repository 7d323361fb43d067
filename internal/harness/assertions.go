package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tally/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Journal  []store.Event // Full journal for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Journal) > 0 {
		fmt.Fprintf(&buf, "\nJournal:\n")
		for _, ev := range e.Journal {
			fmt.Fprintf(&buf, "  [%d] %s %s %s %s\n", ev.Seq, ev.Date, ev.Kind, ev.HabitID, ev.Payload)
		}
	}

	return buf.String()
}

// filterJournal keeps events of kind (if set) for habit (if set).
func filterJournal(journal []store.Event, kind, habit string) []store.Event {
	var out []store.Event
	for _, ev := range journal {
		if kind != "" && string(ev.Kind) != kind {
			continue
		}
		if habit != "" && ev.HabitID != habit {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// assertJournalContains checks that some event of the kind carries a
// payload containing the expected fields (subset match).
func assertJournalContains(journal []store.Event, assertion Assertion) error {
	for _, ev := range filterJournal(journal, assertion.Kind, assertion.Habit) {
		if len(assertion.Payload) == 0 {
			return nil
		}
		payload, err := decodePayload(ev.Payload)
		if err != nil {
			return fmt.Errorf("journal seq %d: %w", ev.Seq, err)
		}
		if _, ok := subsetMatch(assertion.Payload, payload); ok {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertJournalContains,
		Expected: fmt.Sprintf("%s event with payload %v", assertion.Kind, assertion.Payload),
		Actual:   "not found in journal",
		Journal:  journal,
	}
}

// assertJournalOrder checks that the first occurrence of each kind appears
// in the given order. Other events may be interleaved.
func assertJournalOrder(journal []store.Event, assertion Assertion) error {
	positions := make(map[string]int)
	for i, ev := range filterJournal(journal, "", assertion.Habit) {
		kind := string(ev.Kind)
		if _, seen := positions[kind]; !seen {
			positions[kind] = i + 1 // 1-indexed for readability
		}
	}

	for _, kind := range assertion.Kinds {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertJournalOrder,
				Expected: fmt.Sprintf("all kinds present: %v", assertion.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Journal:  journal,
			}
		}
	}

	for i := 1; i < len(assertion.Kinds); i++ {
		prev, curr := assertion.Kinds[i-1], assertion.Kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertJournalOrder,
				Expected: fmt.Sprintf("kinds in order: %v", assertion.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Journal: journal,
			}
		}
	}

	return nil
}

// assertJournalCount checks the kind appears exactly Count times.
func assertJournalCount(journal []store.Event, assertion Assertion) error {
	count := len(filterJournal(journal, assertion.Kind, assertion.Habit))
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Journal:  journal,
		}
	}
	return nil
}

// assertFinalState checks a section of the final document. When the
// section is a list, Where must select exactly one element.
func assertFinalState(state map[string]any, assertion Assertion) error {
	section, ok := state[assertion.State]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("document field %q", assertion.State),
			Actual:   fmt.Sprintf("no such field (have %s)", strings.Join(sortedKeys(state), ", ")),
		}
	}

	target := section
	if list, isList := section.([]any); isList {
		var matches []any
		for _, el := range list {
			if _, ok := subsetMatch(assertion.Where, el); ok {
				matches = append(matches, el)
			}
		}
		if len(matches) != 1 {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("exactly one %s element where %v", assertion.State, assertion.Where),
				Actual:   fmt.Sprintf("%d elements match", len(matches)),
			}
		}
		target = matches[0]
	}

	if path, ok := subsetMatch(assertion.Expect, target); !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s %v", assertion.State, assertion.Expect),
			Actual:   fmt.Sprintf("mismatch at %s: %v", path, target),
		}
	}
	return nil
}

// subsetMatch reports whether every field of expected is present and equal
// in actual. Maps match by subset, lists element-wise with equal length.
// On mismatch it returns the path of the first difference.
func subsetMatch(expected, actual any) (string, bool) {
	return matchAt("$", expected, actual)
}

func matchAt(path string, expected, actual any) (string, bool) {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return path, false
		}
		for _, key := range sortedKeys(exp) {
			av, present := act[key]
			if !present {
				return path + "." + key, false
			}
			if p, ok := matchAt(path+"."+key, exp[key], av); !ok {
				return p, false
			}
		}
		return "", true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return path, false
		}
		for i := range exp {
			if p, ok := matchAt(fmt.Sprintf("%s[%d]", path, i), exp[i], act[i]); !ok {
				return p, false
			}
		}
		return "", true
	default:
		if valuesEqual(expected, actual) {
			return "", true
		}
		return path, false
	}
}

// valuesEqual compares scalars, treating all integer representations as equal.
func valuesEqual(expected, actual any) bool {
	if en, ok := toInt64(expected); ok {
		an, ok := toInt64(actual)
		return ok && en == an
	}
	if expected == nil {
		return actual == nil
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual) && sameKind(expected, actual)
}

func sameKind(a, b any) bool {
	switch a.(type) {
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decodePayload decodes a journal payload into generic values with
// integers as int64.
func decodePayload(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if n, ok := normalizeNumbers(out).(map[string]any); ok {
		return n, nil
	}
	return out, nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertJournalContains:
			err = assertJournalContains(result.Journal, assertion)
		case AssertJournalOrder:
			err = assertJournalOrder(result.Journal, assertion)
		case AssertJournalCount:
			err = assertJournalCount(result.Journal, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
