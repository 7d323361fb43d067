// Package model defines the tally document: habits, stats, the unlocked
// achievement set and the bookkeeping the engines need between runs.
//
// This package contains types, defaults and the migration/export codec only.
// All other internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Calendar dates are Date values ("YYYY-MM-DD"), never timestamps
//   - Stats.Level is derived from Stats.TotalXP and is recomputed, not edited
//   - JSON tags use camelCase to stay compatible with exported backups
//   - Habit.BestStreak >= Habit.CurrentStreak after every migration
package model
