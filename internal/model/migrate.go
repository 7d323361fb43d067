package model

import (
	"slices"
	"sort"
	"strings"
)

// Legacy marker ids written by older versions into the unlocked set.
const (
	legacyEarlyBird = "early_bird_unlocked"
	legacyNightOwl  = "night_owl_unlocked"
	legacyComeback  = "comeback_unlocked"
)

// lostStreakBest is the best streak a reset habit needs to count as having
// lost a streak.
const lostStreakBest = 3

// Migrate brings doc up to the current schema in place. It fills missing
// sections, repairs habit fields, folds legacy marker ids into Triggers and
// re-derives Stats.Level. newID supplies ids for habits that have none.
// Migrate is idempotent.
func Migrate(doc *Document, today Date, newID func() string) {
	if doc.Habits == nil {
		doc.Habits = []Habit{}
	}
	if doc.Achievements == nil {
		doc.Achievements = []string{}
	}
	if doc.WeeklyData == nil {
		doc.WeeklyData = map[Date]WeekData{}
	}
	if doc.Profile.Username == "" {
		doc.Profile.Username = "User"
	}
	if doc.Profile.Avatar == "" {
		doc.Profile.Avatar = "😊"
	}
	if doc.Profile.JoinDate.IsZero() {
		doc.Profile.JoinDate = today
	}
	migrateSettings(&doc.Settings)
	if doc.LastResetDate != "" && !doc.LastResetDate.Valid() {
		doc.LastResetDate = ""
	}
	doc.Version = SchemaVersion

	for i := range doc.Habits {
		migrateHabit(&doc.Habits[i], today, newID)
	}

	migrateAchievements(doc, today)

	if doc.Stats.TotalCompleted < 0 {
		doc.Stats.TotalCompleted = 0
	}
	if doc.Stats.PerfectWeeks < 0 {
		doc.Stats.PerfectWeeks = 0
	}
	doc.SetTotalXP(doc.Stats.TotalXP)
}

func migrateSettings(s *Settings) {
	def := DefaultSettings()
	if s.Theme == "" {
		s.Theme = def.Theme
	}
	if s.FontSize == "" {
		s.FontSize = def.FontSize
	}
	if s.ReminderTime == "" {
		s.ReminderTime = def.ReminderTime
	}
}

func migrateHabit(h *Habit, today Date, newID func() string) {
	if h.ID == "" {
		h.ID = newID()
	}
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		h.Name = DefaultHabitName
	}
	if h.Icon == "" {
		h.Icon = DefaultHabitIcon
	}
	if h.Color == "" {
		h.Color = DefaultHabitColor
	}
	if !h.Frequency.IsValid() {
		h.Frequency = FrequencyDaily
	}
	if h.ScheduledDays == nil {
		h.ScheduledDays = []int{}
	}
	h.normalizeDays()
	if h.CompletedDates == nil {
		h.CompletedDates = []Date{}
	}
	h.normalizeDates()
	if h.CreatedDate.IsZero() || !h.CreatedDate.Valid() {
		h.CreatedDate = today
	}
	if h.LastCompletedDate != "" && !h.LastCompletedDate.Valid() {
		h.LastCompletedDate = h.LatestCompletion()
	}
	if h.Reminder.Time == "" {
		h.Reminder.Time = DefaultReminderTime
	}
	if h.CurrentStreak < 0 {
		h.CurrentStreak = 0
	}
	if h.BestStreak < h.CurrentStreak {
		h.BestStreak = h.CurrentStreak
	}
}

// migrateAchievements drops duplicates and converts legacy marker ids into
// trigger state.
func migrateAchievements(doc *Document, today Date) {
	seen := make(map[string]bool, len(doc.Achievements))
	out := doc.Achievements[:0]
	for _, id := range doc.Achievements {
		switch id {
		case legacyEarlyBird:
			if doc.Triggers.EarlyBirdOn.IsZero() {
				doc.Triggers.EarlyBirdOn = today
			}
			continue
		case legacyNightOwl:
			if doc.Triggers.NightOwlOn.IsZero() {
				doc.Triggers.NightOwlOn = today
			}
			continue
		case legacyComeback:
			// The marker only survives alongside the unlocked "comeback" id;
			// there is no habit to attribute it to.
			continue
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	doc.Achievements = out

	// Documents written before the marker existed still show a lost streak
	// as a reset habit with a best of 3 or more.
	for _, h := range doc.Habits {
		if h.CurrentStreak == 0 && h.BestStreak >= lostStreakBest {
			doc.Triggers.StreakBroken = append(doc.Triggers.StreakBroken, h.ID)
		}
	}

	known := doc.Triggers.StreakBroken[:0]
	for _, id := range doc.Triggers.StreakBroken {
		if doc.Habit(id) != nil {
			known = append(known, id)
		}
	}
	sort.Strings(known)
	doc.Triggers.StreakBroken = slices.Compact(known)
}
