package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
)

// Trigger hours for the time-of-day achievements.
const (
	earlyBirdBefore = 8
	nightOwlFrom    = 22
)

// Achievements evaluates the rule table against the document.
type Achievements struct {
	*base
	xp   *XP
	defs []Definition
}

// Definitions returns the rule table in declaration order.
func (a *Achievements) Definitions() []Definition {
	out := make([]Definition, len(a.defs))
	copy(out, a.defs)
	return out
}

// Get returns the definition for id.
func (a *Achievements) Get(id string) (Definition, bool) {
	for _, d := range a.defs {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Observation is a completion as seen by the trigger achievements.
type Observation struct {
	HabitID string
	At      time.Time
}

// Observe records the time-of-day triggers for a completion. Each trigger is
// set only once.
func (a *Achievements) Observe(ctx context.Context, obs Observation) error {
	_, err := withDocument(ctx, a.base, func(txn *store.Txn, today model.Date) (struct{}, error) {
		a.applyObserve(txn, obs)
		return struct{}{}, nil
	})
	return err
}

func (a *Achievements) applyObserve(txn *store.Txn, obs Observation) {
	t := &txn.Doc.Triggers
	day := model.DateOf(obs.At)
	hour := obs.At.Hour()
	if hour < earlyBirdBefore && t.EarlyBirdOn.IsZero() {
		t.EarlyBirdOn = day
		a.logger.Debug("early bird trigger", "habit", obs.HabitID, "date", day)
	}
	if hour >= nightOwlFrom && t.NightOwlOn.IsZero() {
		t.NightOwlOn = day
		a.logger.Debug("night owl trigger", "habit", obs.HabitID, "date", day)
	}
}

// CheckAll unlocks every definition whose rule now holds and grants the
// achievement bonus for each. XP from one unlock can satisfy another, so
// evaluation repeats until nothing changes. It returns the new unlocks.
func (a *Achievements) CheckAll(ctx context.Context) ([]Definition, error) {
	return withDocument(ctx, a.base, func(txn *store.Txn, today model.Date) ([]Definition, error) {
		return a.applyCheckAll(txn, today), nil
	})
}

func (a *Achievements) applyCheckAll(txn *store.Txn, today model.Date) []Definition {
	unlocked := []Definition{}
	for {
		changed := false
		for _, def := range a.defs {
			doc := txn.Doc
			if doc.HasAchievement(def.ID) {
				continue
			}
			ok, _, err := evaluate(doc, def)
			if err != nil {
				a.logger.Warn("achievement check failed", "achievement", def.ID, "error", err)
				continue
			}
			if !ok {
				continue
			}

			doc.Unlock(def.ID)
			txn.Record(store.EventAchievementUnlocked, "", today, store.Payload{
				"id":   def.ID,
				"name": def.Name,
			})
			a.logger.Info("achievement unlocked", "achievement", def.ID, "date", today)
			a.xp.apply(txn, today, AchievementBonus, "achievement", "")
			unlocked = append(unlocked, def)
			changed = true
		}
		if !changed {
			return unlocked
		}
	}
}

// AchievementStatus is a definition with its standing in a document.
type AchievementStatus struct {
	Definition
	Unlocked bool `json:"unlocked"`
	Progress int  `json:"progress"`
	Percent  int  `json:"percent"`
}

// GetAll returns every definition with its unlocked flag and progress.
func (a *Achievements) GetAll(ctx context.Context) ([]AchievementStatus, error) {
	doc, _, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return a.statuses(doc), nil
}

func (a *Achievements) statuses(doc *model.Document) []AchievementStatus {
	out := make([]AchievementStatus, 0, len(a.defs))
	for _, def := range a.defs {
		st := AchievementStatus{Definition: def, Unlocked: doc.HasAchievement(def.ID)}
		if st.Unlocked {
			st.Progress = def.Target()
		} else if _, progress, err := evaluate(doc, def); err != nil {
			a.logger.Warn("achievement progress failed", "achievement", def.ID, "error", err)
		} else {
			st.Progress = progress
		}
		st.Percent = min(100, roundPercent(st.Progress, def.Target()))
		out = append(out, st)
	}
	return out
}

// UnlockedCount counts unlocked ids that name a known definition.
func (a *Achievements) UnlockedCount(ctx context.Context) (int, error) {
	doc, _, err := a.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, def := range a.defs {
		if doc.HasAchievement(def.ID) {
			n++
		}
	}
	return n, nil
}

// TotalCount is the number of definitions.
func (a *Achievements) TotalCount() int {
	return len(a.defs)
}

// evaluate reports whether def's rule holds for doc and its progress capped
// at the target. A panicking rule is reported as an error.
func evaluate(doc *model.Document, def Definition) (ok bool, progress int, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, progress, err = false, 0, fmt.Errorf("achievement %s: panic: %v", def.ID, r)
		}
	}()

	target := def.Target()
	if target <= 0 {
		return false, 0, fmt.Errorf("achievement %s: target must be positive", def.ID)
	}

	switch def.Rule.Kind {
	case RuleStat:
		v, err := statValue(doc, def.Rule.Field)
		if err != nil {
			return false, 0, fmt.Errorf("achievement %s: %w", def.ID, err)
		}
		return v >= target, min(v, target), nil

	case RuleHabitStreak:
		ok := false
		progress := 0
		for _, h := range doc.Habits {
			if h.CurrentStreak >= target || h.BestStreak >= target {
				ok = true
			}
			progress = max(progress, min(h.CurrentStreak, target))
		}
		return ok, progress, nil

	case RuleEnabledHabits:
		n := 0
		for _, h := range doc.Habits {
			if h.Enabled {
				n++
			}
		}
		return n >= target, min(n, target), nil

	case RuleTrigger:
		hit, err := triggerHit(doc, def.Rule.Trigger)
		if err != nil {
			return false, 0, fmt.Errorf("achievement %s: %w", def.ID, err)
		}
		if hit {
			return true, target, nil
		}
		return false, 0, nil

	default:
		return false, 0, fmt.Errorf("achievement %s: unknown rule kind %q", def.ID, def.Rule.Kind)
	}
}

func statValue(doc *model.Document, field string) (int, error) {
	switch field {
	case StatTotalCompleted:
		return doc.Stats.TotalCompleted, nil
	case StatLevel:
		return doc.Stats.Level, nil
	case StatTotalXP:
		return doc.Stats.TotalXP, nil
	case StatPerfectWeeks:
		return doc.Stats.PerfectWeeks, nil
	default:
		return 0, fmt.Errorf("unknown stat %q", field)
	}
}

func triggerHit(doc *model.Document, trigger string) (bool, error) {
	switch trigger {
	case TriggerEarlyBird:
		return !doc.Triggers.EarlyBirdOn.IsZero(), nil
	case TriggerNightOwl:
		return !doc.Triggers.NightOwlOn.IsZero(), nil
	case TriggerComeback:
		// A habit that lost a streak of 3+ and has rebuilt one.
		for _, h := range doc.Habits {
			if h.CurrentStreak >= brokenThreshold && doc.Triggers.StreakWasBroken(h.ID) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown trigger %q", trigger)
	}
}
