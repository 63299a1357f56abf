// Package deploy defines the artifacts a deployment run produces: the
// structured result returned to the caller and the chronological run log
// that accompanies it.
package deploy

import (
	"fmt"
	"time"
)

// Mode records whether tasks were created in a pre-existing list or in a
// list the run created itself.
type Mode string

const (
	ModeExistingList Mode = "existing_list"
	ModeNewList      Mode = "new_list"
)

// TaskRef is the orchestrator's handle on a task it created. The remote
// service owns the task; only the ID is held, for parent linkage, rollback
// and reporting.
type TaskRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
	Phase  string `json:"phase,omitempty"`
}

// ChecklistRef reports a checklist created on a task.
type ChecklistRef struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
	Items  int    `json:"items"`
}

// Result is the sole externally visible artifact of a deployment run.
// Success is true iff at least one phase task was created and no
// unrecoverable error short-circuited the run.
type Result struct {
	RunID        string            `json:"run_id"`
	Success      bool              `json:"success"`
	Mode         Mode              `json:"mode,omitempty"`
	ListID       string            `json:"list_id,omitempty"`
	Phases       []TaskRef         `json:"phases"`
	Actions      []TaskRef         `json:"actions"`
	Checklists   []ChecklistRef    `json:"checklists"`
	Errors       []string          `json:"errors"`
	Warnings     []string          `json:"warnings"`
	Message      string            `json:"message"`
	MissingFields []string         `json:"missing_fields,omitempty"`
	FieldMapping map[string]string `json:"field_mapping,omitempty"`
	RolledBack   int               `json:"rolled_back,omitempty"`
	Log          []LogEntry        `json:"log"`
}

// NewResult returns an empty result with the slices initialized so JSON
// encodes them as arrays rather than null.
func NewResult(runID string) *Result {
	return &Result{
		RunID:      runID,
		Phases:     []TaskRef{},
		Actions:    []TaskRef{},
		Checklists: []ChecklistRef{},
		Errors:     []string{},
		Warnings:   []string{},
		Log:        []LogEntry{},
	}
}

// AddError records a run-level error string.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddWarning records a warning. Warnings never affect Success.
func (r *Result) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Summarize finalizes Success and the human-readable message.
func (r *Result) Summarize(started time.Time) {
	r.Success = len(r.Phases) > 0
	elapsed := time.Since(started).Round(time.Millisecond)
	if r.Success {
		r.Message = fmt.Sprintf("deployed %d phases, %d actions, %d checklists in %s (%d errors, %d warnings)",
			len(r.Phases), len(r.Actions), len(r.Checklists), elapsed, len(r.Errors), len(r.Warnings))
		return
	}
	if r.Message == "" {
		r.Message = fmt.Sprintf("deployment failed: no phase tasks created (%d errors)", len(r.Errors))
	}
}
