package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Frequency is a habit's scheduling class.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
	FrequencyCustom Frequency = "custom"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyCustom:
		return true
	default:
		return false
	}
}

// ParseFrequency accepts a frequency name in any case.
func ParseFrequency(input string) (Frequency, error) {
	f := Frequency(strings.TrimSpace(strings.ToLower(input)))
	if !f.IsValid() {
		return "", fmt.Errorf("invalid frequency: %q", input)
	}
	return f, nil
}

// Habit defaults applied on creation and migration.
const (
	DefaultHabitName    = "Unnamed Habit"
	DefaultHabitIcon    = "✨"
	DefaultHabitColor   = "#6366f1"
	DefaultReminderTime = "09:00"
)

// Reminder is the per-habit reminder configuration. Scheduling is done by
// whatever front end consumes the document.
type Reminder struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time"`
}

// Habit is one tracked habit with its streak state.
type Habit struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Icon              string    `json:"icon"`
	Color             string    `json:"color"`
	Frequency         Frequency `json:"frequency"`
	ScheduledDays     []int     `json:"scheduledDays"`
	Enabled           bool      `json:"enabled"`
	CurrentStreak     int       `json:"currentStreak"`
	BestStreak        int       `json:"bestStreak"`
	LastCompletedDate Date      `json:"lastCompletedDate,omitempty"`
	CompletedDates    []Date    `json:"completedDates"`
	CreatedDate       Date      `json:"createdDate"`
	Reminder          Reminder  `json:"reminder"`
	Order             int       `json:"order"`
}

// UnmarshalJSON accepts both the current field names and the ones used by
// older backups (days, lastCompleted, createdAt, reminderEnabled,
// reminderTime). A missing "enabled" means enabled.
func (h *Habit) UnmarshalJSON(data []byte) error {
	type plain Habit
	aux := struct {
		*plain
		Enabled         *bool  `json:"enabled"`
		Days            []int  `json:"days"`
		LastCompleted   Date   `json:"lastCompleted"`
		CreatedAt       Date   `json:"createdAt"`
		ReminderEnabled *bool  `json:"reminderEnabled"`
		ReminderTime    string `json:"reminderTime"`
	}{plain: (*plain)(h)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	h.Enabled = aux.Enabled == nil || *aux.Enabled
	if h.ScheduledDays == nil && aux.Days != nil {
		h.ScheduledDays = aux.Days
	}
	if h.LastCompletedDate.IsZero() {
		h.LastCompletedDate = aux.LastCompleted
	}
	if h.CreatedDate.IsZero() {
		h.CreatedDate = aux.CreatedAt
	}
	if aux.ReminderEnabled != nil {
		h.Reminder.Enabled = *aux.ReminderEnabled
	}
	if h.Reminder.Time == "" {
		h.Reminder.Time = aux.ReminderTime
	}
	return nil
}

// IsScheduledOn reports whether weekday is in the habit's day set.
func (h *Habit) IsScheduledOn(weekday time.Weekday) bool {
	for _, d := range h.ScheduledDays {
		if d == int(weekday) {
			return true
		}
	}
	return false
}

// HasCompletion reports whether the habit was completed on d.
func (h *Habit) HasCompletion(d Date) bool {
	i := sort.Search(len(h.CompletedDates), func(i int) bool { return !h.CompletedDates[i].Before(d) })
	return i < len(h.CompletedDates) && h.CompletedDates[i] == d
}

// AddCompletion records a completion on d, keeping CompletedDates sorted and
// unique. It returns false if d was already recorded.
func (h *Habit) AddCompletion(d Date) bool {
	i := sort.Search(len(h.CompletedDates), func(i int) bool { return !h.CompletedDates[i].Before(d) })
	if i < len(h.CompletedDates) && h.CompletedDates[i] == d {
		return false
	}
	h.CompletedDates = append(h.CompletedDates, "")
	copy(h.CompletedDates[i+1:], h.CompletedDates[i:])
	h.CompletedDates[i] = d
	return true
}

// RemoveCompletion deletes d from the completion set. It returns false if d
// was not recorded.
func (h *Habit) RemoveCompletion(d Date) bool {
	i := sort.Search(len(h.CompletedDates), func(i int) bool { return !h.CompletedDates[i].Before(d) })
	if i >= len(h.CompletedDates) || h.CompletedDates[i] != d {
		return false
	}
	h.CompletedDates = append(h.CompletedDates[:i], h.CompletedDates[i+1:]...)
	return true
}

// LatestCompletion returns the most recent completion date, or the zero Date.
func (h *Habit) LatestCompletion() Date {
	if len(h.CompletedDates) == 0 {
		return ""
	}
	return h.CompletedDates[len(h.CompletedDates)-1]
}

// normalizeDates sorts and deduplicates completion dates, dropping
// unparsable entries.
func (h *Habit) normalizeDates() {
	seen := make(map[Date]bool, len(h.CompletedDates))
	out := h.CompletedDates[:0]
	for _, d := range h.CompletedDates {
		if !d.Valid() || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	h.CompletedDates = out
}

// normalizeDays deduplicates and sorts the weekday set, dropping values
// outside 0..6.
func (h *Habit) normalizeDays() {
	seen := make(map[int]bool, len(h.ScheduledDays))
	out := make([]int, 0, len(h.ScheduledDays))
	for _, d := range h.ScheduledDays {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	h.ScheduledDays = out
}

// SetScheduledDays replaces the weekday set, dropping duplicates and values
// outside 0..6.
func (h *Habit) SetScheduledDays(days []int) {
	h.ScheduledDays = append([]int(nil), days...)
	h.normalizeDays()
}
