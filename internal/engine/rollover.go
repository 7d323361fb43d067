package engine

import (
	"context"

	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
)

// Report describes one rollover check.
type Report struct {
	// Ran is false when the day had already been rolled over.
	Ran         bool         `json:"ran"`
	Date        model.Date   `json:"date"`
	Previous    model.Date   `json:"previous"`
	Broken      []string     `json:"broken"`
	PerfectWeek bool         `json:"perfectWeek"`
	Unlocked    []Definition `json:"unlocked"`
}

// Rollover runs the once-per-day maintenance pass.
type Rollover struct {
	*base
	streaks      *Streaks
	xp           *XP
	achievements *Achievements
}

// Run compares lastResetDate with today and, on a new day, applies the
// broken-streak pass and the perfect-week check, then stamps today. Repeat
// calls on the same day change nothing.
func (r *Rollover) Run(ctx context.Context) (Report, error) {
	return withDocument(ctx, r.base, func(txn *store.Txn, today model.Date) (Report, error) {
		doc := txn.Doc
		rep := Report{
			Date:     today,
			Previous: doc.LastResetDate,
			Broken:   []string{},
			Unlocked: []Definition{},
		}
		if doc.LastResetDate == today {
			return rep, nil
		}

		rep.Ran = true
		rep.Broken = r.streaks.applyBrokenStreaks(txn, today)
		rep.PerfectWeek = r.xp.applyPerfectWeek(txn, today)
		if rep.PerfectWeek {
			rep.Unlocked = r.achievements.applyCheckAll(txn, today)
		}
		doc.LastResetDate = today

		txn.Record(store.EventRolloverRan, "", today, store.Payload{
			"previous":    rep.Previous,
			"broken":      rep.Broken,
			"perfectWeek": rep.PerfectWeek,
		})
		r.logger.Info("daily rollover", "date", today, "previous", rep.Previous, "broken", len(rep.Broken))
		return rep, nil
	})
}
