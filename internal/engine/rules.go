package engine

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed achievements.cue
var achievementsCUE []byte

// RuleKind tags an achievement rule variant.
type RuleKind string

const (
	// RuleStat compares a stats counter with the target.
	RuleStat RuleKind = "stat"
	// RuleHabitStreak needs one habit with a current or best streak >= target.
	RuleHabitStreak RuleKind = "habit_streak"
	// RuleEnabledHabits counts enabled habits.
	RuleEnabledHabits RuleKind = "enabled_habits"
	// RuleTrigger is unlocked by an event recorded in document triggers.
	RuleTrigger RuleKind = "trigger"
)

// Stat fields a RuleStat may reference.
const (
	StatTotalCompleted = "totalCompleted"
	StatLevel          = "level"
	StatTotalXP        = "totalXP"
	StatPerfectWeeks   = "perfectWeeks"
)

// Trigger names a RuleTrigger may reference.
const (
	TriggerEarlyBird = "early_bird"
	TriggerNightOwl  = "night_owl"
	TriggerComeback  = "comeback"
)

// Rule is the unlock condition of an achievement.
type Rule struct {
	Kind    RuleKind `json:"kind"`
	Field   string   `json:"field,omitempty"`
	Trigger string   `json:"trigger,omitempty"`
	Target  int      `json:"target"`
}

// Definition is one entry of the achievement table.
type Definition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Rule        Rule   `json:"rule"`
}

// Target is the progress value at which the achievement unlocks.
func (d Definition) Target() int {
	return d.Rule.Target
}

// RuleError reports a problem in an achievement table.
type RuleError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *RuleError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DefaultRules decodes the built-in achievement table.
func DefaultRules() ([]Definition, error) {
	return LoadRules(achievementsCUE, "achievements.cue")
}

// LoadRules compiles a CUE achievement table. The source must define an
// "achievements" list; entries are validated against the schema in the
// built-in table, so a custom table only lists data.
func LoadRules(src []byte, filename string) ([]Definition, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(achievementsCUE, cue.Filename("achievements.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	list := v.LookupPath(cue.ParsePath("achievements"))
	if !list.Exists() {
		return nil, &RuleError{Field: "achievements", Message: "achievements list is required", Pos: v.Pos()}
	}
	achievement := schema.LookupPath(cue.ParsePath("#Achievement"))
	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []Definition
	seen := map[string]bool{}
	for iter.Next() {
		entry := iter.Value().Unify(achievement)
		if err := entry.Validate(cue.Concrete(true)); err != nil {
			return nil, formatCUEError(err)
		}
		var d Definition
		if err := entry.Decode(&d); err != nil {
			return nil, formatCUEError(err)
		}
		if seen[d.ID] {
			return nil, &RuleError{
				Field:   fmt.Sprintf("achievements.%s", d.ID),
				Message: "duplicate achievement id",
				Pos:     iter.Value().Pos(),
			}
		}
		seen[d.ID] = true
		defs = append(defs, d)
	}
	return defs, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &RuleError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
