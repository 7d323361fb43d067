// Package engine implements habit progression: streaks, experience points,
// achievements and the daily rollover.
//
// ARCHITECTURE:
//
// Every public operation is one store transaction that re-reads the latest
// committed document, migrates it (or starts a default one), mutates it and
// writes it back together with its journal events. Nothing is cached between
// calls, so two engines over the same store always agree.
//
// Completion Flow:
// 1. Habits records today's completion (completedDates, totalCompleted)
// 2. Streaks applies the streak rule and stamps lastCompletedDate
// 3. XP awards the base reward plus the highest streak bonus tier
// 4. Achievements records time-of-day triggers and unlocks what became true
// 5. XP checks the perfect week (Saturdays only)
//
// All five steps share one transaction; a failure in any of them leaves
// the stored document unchanged.
//
// Day Transition Flow:
// Rollover compares lastResetDate with today and, once per calendar day,
// resets broken streaks and checks the perfect week inside one transaction.
//
// ACHIEVEMENTS:
//
// The rule table is CUE (achievements.cue), decoded into []Definition when
// the Engine is built. WithRules swaps in another table loaded by LoadRules.
//
// DATES:
//
// "Today" is the calendar date of Clock.Now() in the clock's location. All
// stored dates are model.Date values; wall-clock time is only consulted for
// the early-bird and night-owl triggers.
package engine
