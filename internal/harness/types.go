package harness

import (
	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
)

// Step outcome cases. Engine errors use their error code as the case.
const (
	CaseOK               = "ok"
	CaseAlreadyCompleted = "already_completed"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step   int            `json:"step"`
	Phase  string         `json:"phase"` // "setup" or "flow"
	Date   model.Date     `json:"date"`
	Invoke string         `json:"invoke"`
	Args   map[string]any `json:"args,omitempty"`
	Case   string         `json:"case"`
	Result any            `json:"result,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Journal is the full event journal after the last step.
	Journal []store.Event `json:"journal"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final document as generic JSON, used by final_state.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Journal: []store.Event{},
		Errors:  []string{},
		State:   map[string]any{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace appends an executed step to the trace.
func (r *Result) AddStepTrace(ev TraceEvent) {
	ev.Step = len(r.Trace)
	r.Trace = append(r.Trace, ev)
}
