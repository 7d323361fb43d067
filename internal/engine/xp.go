package engine

import (
	"context"
	"time"

	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
)

// XP reward values.
const (
	HabitComplete    = 10
	StreakBonus3     = 5
	StreakBonus7     = 10
	StreakBonus30    = 20
	PerfectWeekBonus = 30
	AchievementBonus = 25
	XPPerLevel       = model.XPPerLevel
)

// Level returns the level for a total: floor(total/100)+1, negatives as 0.
func Level(totalXP int) int {
	return model.LevelFor(totalXP)
}

// TotalXPForLevel returns the total needed to reach level.
func TotalXPForLevel(level int) int {
	if level < 1 {
		level = 1
	}
	return (level - 1) * XPPerLevel
}

// LevelProgress describes where a total sits inside its level.
type LevelProgress struct {
	TotalXP   int `json:"totalXP"`
	Level     int `json:"level"`
	XPInLevel int `json:"xpInLevel"`
	XPToNext  int `json:"xpToNext"`
	Percent   int `json:"percent"`
}

// Progress computes level progress for a total.
func Progress(totalXP int) LevelProgress {
	totalXP = max(0, totalXP)
	in := totalXP % XPPerLevel
	return LevelProgress{
		TotalXP:   totalXP,
		Level:     Level(totalXP),
		XPInLevel: in,
		XPToNext:  XPPerLevel - in,
		Percent:   roundPercent(in, XPPerLevel),
	}
}

// Bonus is one extra reward line.
type Bonus struct {
	Label  string `json:"label"`
	Amount int    `json:"amount"`
}

// Award is the reward for one completion.
type Award struct {
	Base  int    `json:"base"`
	Bonus *Bonus `json:"bonus,omitempty"`
	Total int    `json:"total"`
}

// CompletionAward returns the reward for completing a habit whose streak,
// after the completion, is streak. Only the highest bonus tier applies.
func CompletionAward(streak int) Award {
	a := Award{Base: HabitComplete}
	switch {
	case streak >= 30:
		a.Bonus = &Bonus{Label: "30-day streak", Amount: StreakBonus30}
	case streak >= 7:
		a.Bonus = &Bonus{Label: "7-day streak", Amount: StreakBonus7}
	case streak >= 3:
		a.Bonus = &Bonus{Label: "3-day streak", Amount: StreakBonus3}
	}
	a.Total = a.Base
	if a.Bonus != nil {
		a.Total += a.Bonus.Amount
	}
	return a
}

// LevelChange reports the effect of an XP change.
type LevelChange struct {
	OldLevel  int  `json:"oldLevel"`
	NewLevel  int  `json:"newLevel"`
	TotalXP   int  `json:"totalXP"`
	LeveledUp bool `json:"leveledUp"`
}

// XP owns totalXP, the derived level and the perfect-week bonus.
type XP struct {
	*base
}

// Info returns level progress for the stored total.
func (x *XP) Info(ctx context.Context) (LevelProgress, error) {
	doc, _, err := x.snapshot(ctx)
	if err != nil {
		return LevelProgress{}, err
	}
	return Progress(doc.Stats.TotalXP), nil
}

// AddXP adds amount (which may be negative) to totalXP, floored at 0.
func (x *XP) AddXP(ctx context.Context, amount int) (LevelChange, error) {
	return x.add(ctx, amount, "adjustment", "")
}

func (x *XP) add(ctx context.Context, amount int, reason, habitID string) (LevelChange, error) {
	return withDocument(ctx, x.base, func(txn *store.Txn, today model.Date) (LevelChange, error) {
		return x.apply(txn, today, amount, reason, habitID), nil
	})
}

func (x *XP) apply(txn *store.Txn, today model.Date, amount int, reason, habitID string) LevelChange {
	doc := txn.Doc
	old := doc.Stats.TotalXP
	oldLevel := Level(old)
	doc.SetTotalXP(old + amount)

	change := LevelChange{
		OldLevel:  oldLevel,
		NewLevel:  doc.Stats.Level,
		TotalXP:   doc.Stats.TotalXP,
		LeveledUp: doc.Stats.Level > oldLevel,
	}

	kind := store.EventXPAwarded
	if amount < 0 {
		kind = store.EventXPDeducted
	}
	txn.Record(kind, habitID, today, store.Payload{
		"amount": doc.Stats.TotalXP - old,
		"reason": reason,
		"total":  doc.Stats.TotalXP,
	})
	if change.LeveledUp {
		txn.Record(store.EventLevelUp, habitID, today, store.Payload{
			"from": oldLevel,
			"to":   change.NewLevel,
		})
		x.logger.Info("level up", "level", change.NewLevel, "xp", change.TotalXP, "date", today)
	}
	x.logger.Debug("xp changed", "xp", doc.Stats.TotalXP-old, "reason", reason, "habit", habitID)
	return change
}

// CheckPerfectWeek awards the perfect-week bonus when today is Saturday and
// every enabled habit was completed on each of its scheduled days since
// Sunday. It returns true only when the bonus was granted by this call.
func (x *XP) CheckPerfectWeek(ctx context.Context) (bool, error) {
	return withDocument(ctx, x.base, func(txn *store.Txn, today model.Date) (bool, error) {
		return x.applyPerfectWeek(txn, today), nil
	})
}

func (x *XP) applyPerfectWeek(txn *store.Txn, today model.Date) bool {
	if today.Weekday() != time.Saturday {
		return false
	}
	doc := txn.Doc
	week := today.WeekStart()
	if doc.WeeklyData[week].PerfectWeekAwarded {
		return false
	}
	if !isPerfectWeek(doc, today) {
		return false
	}

	doc.WeeklyData[week] = model.WeekData{PerfectWeekAwarded: true}
	doc.Stats.PerfectWeeks++
	txn.Record(store.EventPerfectWeekAwarded, "", today, store.Payload{
		"week":         week,
		"perfectWeeks": doc.Stats.PerfectWeeks,
	})
	x.logger.Info("perfect week", "date", today, "xp", PerfectWeekBonus)
	x.apply(txn, today, PerfectWeekBonus, "perfect_week", "")
	return true
}

// isPerfectWeek checks the Sunday..today window. Days before a habit was
// created are not required. At least one enabled habit with one due day is
// needed.
func isPerfectWeek(doc *model.Document, today model.Date) bool {
	due := 0
	for _, day := range today.WeekDays() {
		if today.Before(day) {
			break
		}
		for i := range doc.Habits {
			h := &doc.Habits[i]
			if !h.Enabled || day.Before(h.CreatedDate) || !WasActiveOn(h, day) {
				continue
			}
			due++
			if !h.HasCompletion(day) {
				return false
			}
		}
	}
	return due > 0
}

func roundPercent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (part*100 + whole/2) / whole
}
