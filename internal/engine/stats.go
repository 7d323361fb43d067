package engine

import (
	"context"

	"github.com/roach88/tally/internal/model"
)

// Summary is the dashboard view of a document.
type Summary struct {
	Date            model.Date    `json:"date"`
	Level           LevelProgress `json:"level"`
	TotalCompleted  int           `json:"totalCompleted"`
	PerfectWeeks    int           `json:"perfectWeeks"`
	Habits          int           `json:"habits"`
	CurrentBest     int           `json:"currentBest"`
	BestOverall     int           `json:"bestOverall"`
	TotalStreakDays int           `json:"totalStreakDays"`
	Today           TodayStats    `json:"today"`
	Unlocked        int           `json:"unlocked"`
	Achievements    int           `json:"achievements"`
	Milestones      []Milestone   `json:"milestones"`
	StorageBytes    int           `json:"storageBytes"`
}

// Summary collects the headline numbers shown by the stats view.
func (e *Engine) Summary(ctx context.Context) (*Summary, error) {
	doc, today, err := e.base.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	size, err := e.StorageSize(ctx)
	if err != nil {
		return nil, err
	}

	unlocked := 0
	for _, def := range e.Achievements.defs {
		if doc.HasAchievement(def.ID) {
			unlocked++
		}
	}
	return &Summary{
		Date:            today,
		Level:           Progress(doc.Stats.TotalXP),
		TotalCompleted:  doc.Stats.TotalCompleted,
		PerfectWeeks:    doc.Stats.PerfectWeeks,
		Habits:          len(doc.Habits),
		CurrentBest:     CurrentBest(doc),
		BestOverall:     BestOverall(doc),
		TotalStreakDays: TotalStreakDays(doc),
		Today:           StatsOn(doc, today),
		Unlocked:        unlocked,
		Achievements:    e.Achievements.TotalCount(),
		Milestones:      Milestones(doc),
		StorageBytes:    size,
	}, nil
}
