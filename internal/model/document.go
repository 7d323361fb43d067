package model

import "sort"

// SchemaVersion is written to every document and export.
const SchemaVersion = "1.0.0"

// XPPerLevel is the fixed width of one level.
const XPPerLevel = 100

// LevelFor returns floor(totalXP/XPPerLevel)+1. Negative totals count as 0.
func LevelFor(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP/XPPerLevel + 1
}

// Profile is the user's display identity.
type Profile struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	JoinDate Date   `json:"joinDate"`
}

// Stats holds the progression counters. Level mirrors TotalXP.
type Stats struct {
	TotalXP        int `json:"totalXP"`
	Level          int `json:"level"`
	TotalCompleted int `json:"totalCompleted"`
	PerfectWeeks   int `json:"perfectWeeks"`
}

// Settings are front-end preferences carried in the document.
type Settings struct {
	Theme         string `json:"theme"`
	FontSize      string `json:"fontSize"`
	Notifications bool   `json:"notifications"`
	ReminderTime  string `json:"reminderTime"`
	Sound         bool   `json:"sound"`
}

// WeekData is per-week bookkeeping keyed by the week's Sunday.
type WeekData struct {
	PerfectWeekAwarded bool `json:"perfectWeekAwarded"`
}

// Triggers is the auxiliary state behind event-triggered achievements.
type Triggers struct {
	// EarlyBirdOn is the first day a habit was completed before 08:00.
	EarlyBirdOn Date `json:"earlyBirdOn,omitempty"`
	// NightOwlOn is the first day a habit was completed at or after 22:00.
	NightOwlOn Date `json:"nightOwlOn,omitempty"`
	// StreakBroken lists habits whose streak was lost after reaching 3.
	StreakBroken []string `json:"streakBroken,omitempty"`
}

// StreakWasBroken reports whether habitID was reset after a best streak of 3
// or more.
func (t *Triggers) StreakWasBroken(habitID string) bool {
	i := sort.SearchStrings(t.StreakBroken, habitID)
	return i < len(t.StreakBroken) && t.StreakBroken[i] == habitID
}

// MarkStreakBroken records that habitID was reset after a best streak of 3
// or more.
func (t *Triggers) MarkStreakBroken(habitID string) bool {
	i := sort.SearchStrings(t.StreakBroken, habitID)
	if i < len(t.StreakBroken) && t.StreakBroken[i] == habitID {
		return false
	}
	t.StreakBroken = append(t.StreakBroken, "")
	copy(t.StreakBroken[i+1:], t.StreakBroken[i:])
	t.StreakBroken[i] = habitID
	return true
}

func (t *Triggers) forget(habitID string) {
	i := sort.SearchStrings(t.StreakBroken, habitID)
	if i < len(t.StreakBroken) && t.StreakBroken[i] == habitID {
		t.StreakBroken = append(t.StreakBroken[:i], t.StreakBroken[i+1:]...)
	}
}

// Document is the single persisted record.
type Document struct {
	Habits        []Habit           `json:"habits"`
	Profile       Profile           `json:"profile"`
	Stats         Stats             `json:"stats"`
	Achievements  []string          `json:"achievements"`
	Triggers      Triggers          `json:"triggers"`
	Settings      Settings          `json:"settings"`
	LastResetDate Date              `json:"lastResetDate"`
	WeeklyData    map[Date]WeekData `json:"weeklyData"`
	Version       string            `json:"version"`
}

// NewDocument returns a freshly initialized document for a user starting on
// today.
func NewDocument(today Date) *Document {
	return &Document{
		Habits: []Habit{},
		Profile: Profile{
			Username: "User",
			Avatar:   "😊",
			JoinDate: today,
		},
		Stats:        Stats{Level: 1},
		Achievements: []string{},
		Settings:     DefaultSettings(),
		// A fresh document has nothing to roll over.
		LastResetDate: today,
		WeeklyData:    map[Date]WeekData{},
		Version:       SchemaVersion,
	}
}

// DefaultSettings returns the settings of a new document.
func DefaultSettings() Settings {
	return Settings{
		Theme:        "system",
		FontSize:     "medium",
		ReminderTime: "20:00",
		Sound:        true,
	}
}

// Habit returns a pointer into Habits for id, or nil.
func (d *Document) Habit(id string) *Habit {
	for i := range d.Habits {
		if d.Habits[i].ID == id {
			return &d.Habits[i]
		}
	}
	return nil
}

// RemoveHabit deletes the habit with id. It returns false if none matched.
func (d *Document) RemoveHabit(id string) bool {
	for i := range d.Habits {
		if d.Habits[i].ID == id {
			d.Habits = append(d.Habits[:i], d.Habits[i+1:]...)
			d.Triggers.forget(id)
			return true
		}
	}
	return false
}

// NextOrder returns max(order)+1, or 0 for an empty list.
func (d *Document) NextOrder() int {
	next := 0
	for _, h := range d.Habits {
		if h.Order+1 > next {
			next = h.Order + 1
		}
	}
	return next
}

// SortedHabits returns a copy of Habits ordered by Order, ties by creation
// position.
func (d *Document) SortedHabits() []Habit {
	out := make([]Habit, len(d.Habits))
	copy(out, d.Habits)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// HasAchievement reports whether id is in the unlocked set.
func (d *Document) HasAchievement(id string) bool {
	for _, a := range d.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// Unlock appends id to the unlocked set. It returns false if already present.
func (d *Document) Unlock(id string) bool {
	if d.HasAchievement(id) {
		return false
	}
	d.Achievements = append(d.Achievements, id)
	return true
}

// SetTotalXP sets TotalXP floored at zero and keeps Level in sync.
func (d *Document) SetTotalXP(total int) {
	if total < 0 {
		total = 0
	}
	d.Stats.TotalXP = total
	d.Stats.Level = LevelFor(total)
}
