package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/model"
)

// actionFunc runs one named step and returns its case and raw result.
type actionFunc func(ctx context.Context, h *Harness, a args) (string, any, error)

// actions maps step names to engine operations.
var actions = map[string]actionFunc{
	"create":             actCreate,
	"update":             actUpdate,
	"toggle":             actToggle,
	"delete":             actDelete,
	"reorder":            actReorder,
	"complete":           actComplete,
	"uncomplete":         actUncomplete,
	"rollover":           actRollover,
	"add_xp":             actAddXP,
	"check_achievements": actCheckAchievements,
	"check_perfect_week": actCheckPerfectWeek,
	"advance":            actAdvance,
	"set_time":           actSetTime,
	"reset":              actReset,
}

// Actions returns the supported step names.
func Actions() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	return names
}

func actCreate(ctx context.Context, h *Harness, a args) (string, any, error) {
	in := engine.HabitInput{
		Name:        a.str("name"),
		Description: a.str("description"),
		Icon:        a.str("icon"),
		Color:       a.str("color"),
		Frequency:   model.Frequency(a.str("frequency")),
	}
	if a.has("days") {
		days, err := a.ints("days")
		if err != nil {
			return "", nil, err
		}
		in.ScheduledDays = days
	}
	if a.has("reminder") {
		in.Reminder = &model.Reminder{Enabled: true, Time: a.str("reminder")}
	}
	ch, err := h.engine.Habits.Create(ctx, in)
	if err != nil {
		return "", nil, err
	}
	return CaseOK, ch, nil
}

func actUpdate(ctx context.Context, h *Harness, a args) (string, any, error) {
	var patch engine.HabitPatch
	for _, f := range []struct {
		key string
		dst **string
	}{
		{"name", &patch.Name},
		{"description", &patch.Description},
		{"icon", &patch.Icon},
		{"color", &patch.Color},
	} {
		if a.has(f.key) {
			v := a.str(f.key)
			*f.dst = &v
		}
	}
	if a.has("frequency") {
		freq := model.Frequency(a.str("frequency"))
		patch.Frequency = &freq
	}
	if a.has("days") {
		days, err := a.ints("days")
		if err != nil {
			return "", nil, err
		}
		patch.ScheduledDays = &days
	}
	if a.has("enabled") {
		enabled, err := a.boolean("enabled")
		if err != nil {
			return "", nil, err
		}
		patch.Enabled = &enabled
	}
	ch, err := h.engine.Habits.Update(ctx, a.str("habit"), patch)
	if err != nil {
		return "", nil, err
	}
	return CaseOK, ch, nil
}

func actToggle(ctx context.Context, h *Harness, a args) (string, any, error) {
	ch, err := h.engine.Habits.ToggleEnabled(ctx, a.str("habit"))
	if err != nil {
		return "", nil, err
	}
	return CaseOK, ch, nil
}

func actDelete(ctx context.Context, h *Harness, a args) (string, any, error) {
	id := a.str("habit")
	if err := h.engine.Habits.Delete(ctx, id); err != nil {
		return "", nil, err
	}
	return CaseOK, map[string]any{"deleted": id}, nil
}

func actReorder(ctx context.Context, h *Harness, a args) (string, any, error) {
	from, err := a.integer("from")
	if err != nil {
		return "", nil, err
	}
	to, err := a.integer("to")
	if err != nil {
		return "", nil, err
	}
	habits, err := h.engine.Habits.Reorder(ctx, from, to)
	if err != nil {
		return "", nil, err
	}
	ids := make([]string, len(habits))
	for i, hb := range habits {
		ids[i] = hb.ID
	}
	return CaseOK, map[string]any{"order": ids}, nil
}

func actComplete(ctx context.Context, h *Harness, a args) (string, any, error) {
	res, err := h.engine.Habits.Complete(ctx, a.str("habit"))
	if err != nil {
		return "", nil, err
	}
	if res.AlreadyCompleted {
		return CaseAlreadyCompleted, res, nil
	}
	return CaseOK, res, nil
}

func actUncomplete(ctx context.Context, h *Harness, a args) (string, any, error) {
	res, err := h.engine.Habits.Uncomplete(ctx, a.str("habit"))
	if err != nil {
		return "", nil, err
	}
	return CaseOK, res, nil
}

func actRollover(ctx context.Context, h *Harness, _ args) (string, any, error) {
	rep, err := h.engine.Rollover.Run(ctx)
	if err != nil {
		return "", nil, err
	}
	return CaseOK, rep, nil
}

func actAddXP(ctx context.Context, h *Harness, a args) (string, any, error) {
	amount, err := a.integer("amount")
	if err != nil {
		return "", nil, err
	}
	lc, err := h.engine.XP.AddXP(ctx, amount)
	if err != nil {
		return "", nil, err
	}
	return CaseOK, lc, nil
}

func actCheckAchievements(ctx context.Context, h *Harness, _ args) (string, any, error) {
	defs, err := h.engine.Achievements.CheckAll(ctx)
	if err != nil {
		return "", nil, err
	}
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	return CaseOK, map[string]any{"unlocked": ids}, nil
}

func actCheckPerfectWeek(ctx context.Context, h *Harness, _ args) (string, any, error) {
	awarded, err := h.engine.XP.CheckPerfectWeek(ctx)
	if err != nil {
		return "", nil, err
	}
	return CaseOK, map[string]any{"awarded": awarded}, nil
}

// actAdvance moves the clock forward by days (default 1), optionally
// setting the time of day afterwards.
func actAdvance(_ context.Context, h *Harness, a args) (string, any, error) {
	days := 1
	if a.has("days") {
		n, err := a.integer("days")
		if err != nil {
			return "", nil, err
		}
		if n < 0 {
			return "", nil, fmt.Errorf("advance: days must be non-negative, got %d", n)
		}
		days = n
	}
	h.clock.AdvanceDays(days)
	if a.has("time") {
		if err := setTime(h, a.str("time")); err != nil {
			return "", nil, err
		}
	}
	return CaseOK, map[string]any{"date": h.today()}, nil
}

func actSetTime(_ context.Context, h *Harness, a args) (string, any, error) {
	if err := setTime(h, a.str("time")); err != nil {
		return "", nil, err
	}
	return CaseOK, map[string]any{"time": a.str("time")}, nil
}

func actReset(ctx context.Context, h *Harness, _ args) (string, any, error) {
	if err := h.engine.Reset(ctx); err != nil {
		return "", nil, err
	}
	return CaseOK, nil, nil
}

func setTime(h *Harness, hhmm string) error {
	if !timeOfDay.MatchString(hhmm) {
		return fmt.Errorf("time %q must be HH:MM", hhmm)
	}
	var hour, minute int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &hour, &minute); err != nil {
		return fmt.Errorf("time %q: %w", hhmm, err)
	}
	h.clock.SetTimeOfDay(hour, minute)
	return nil
}

// args wraps YAML-decoded step arguments.
type args map[string]any

func argMap(m map[string]any) args {
	if m == nil {
		return args{}
	}
	return args(m)
}

func (a args) has(key string) bool {
	_, ok := a[key]
	return ok
}

func (a args) str(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (a args) integer(key string) (int, error) {
	n, ok := toInt64(a[key])
	if !ok {
		return 0, fmt.Errorf("arg %q: expected integer, got %T", key, a[key])
	}
	return int(n), nil
}

func (a args) boolean(key string) (bool, error) {
	b, ok := a[key].(bool)
	if !ok {
		return false, fmt.Errorf("arg %q: expected bool, got %T", key, a[key])
	}
	return b, nil
}

func (a args) ints(key string) ([]int, error) {
	list, ok := a[key].([]any)
	if !ok {
		return nil, fmt.Errorf("arg %q: expected list, got %T", key, a[key])
	}
	out := make([]int, len(list))
	for i, v := range list {
		n, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("arg %q[%d]: expected integer, got %T", key, i, v)
		}
		out[i] = int(n)
	}
	return out, nil
}

// toInt64 accepts the integer shapes produced by yaml.v3 and encoding/json.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// toGeneric converts a Go value to maps, slices and scalars via JSON, with
// numbers kept as int64 where integral.
func toGeneric(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return normalizeNumbers(out), nil
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, e := range val {
			val[k] = normalizeNumbers(e)
		}
		return val
	case []any:
		for i, e := range val {
			val[i] = normalizeNumbers(e)
		}
		return val
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	default:
		return v
	}
}
