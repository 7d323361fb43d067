// Package harness runs day-by-day habit scenarios against the real engine.
//
// A scenario fixes a start date and time, then drives the engine through
// setup and flow steps while a settable clock moves between days. Each
// scenario gets a fresh in-memory SQLite store and sequential habit ids, so
// the resulting journal is byte-for-byte reproducible.
//
// # Scenario Format
//
//	name: three_day_streak
//	description: "Three consecutive days unlock streak_3"
//	start: "2026-10-18"
//	time: "12:00"
//	setup:
//	  - action: create
//	    args: { name: Read }
//	flow:
//	  - invoke: complete
//	    args: { habit: habit-1 }
//	  - invoke: advance
//	  - invoke: complete
//	    args: { habit: habit-1 }
//	    expect:
//	      case: ok
//	      result: { habit: { currentStreak: 2 } }
//	assertions:
//	  - type: journal_contains
//	    kind: achievement.unlocked
//	    payload: { id: first_habit }
//	  - type: final_state
//	    state: habits
//	    where: { id: habit-1 }
//	    expect: { currentStreak: 2 }
//
// # Actions
//
// create, update, toggle, delete, reorder, complete, uncomplete, rollover,
// add_xp, check_achievements, check_perfect_week, advance, set_time, reset.
//
// A step's case is "ok", "already_completed" for a repeated completion, or
// the engine error code (HABIT_NOT_FOUND, INVALID_HABIT,
// NOT_COMPLETED_TODAY, INVALID_REORDER). Results are compared as a subset
// of the operation's JSON result.
//
// # Assertion Types
//
//   - journal_contains: an event of a kind with a matching payload subset
//   - journal_order: first occurrences of kinds appear in order
//   - journal_count: a kind appears exactly N times
//   - final_state: a top-level document field matches; lists need a where
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON journal against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
