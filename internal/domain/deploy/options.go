package deploy

import "time"

// DefaultDelay paces phase-creation calls when the caller does not override
// the budget. Actions and sub-actions use fractions of it.
const DefaultDelay = 500 * time.Millisecond

// Options control one deployment invocation.
type Options struct {
	// StopOnMissingFields aborts before any task is created when the
	// template references custom fields the destination list lacks.
	StopOnMissingFields bool `json:"stop_on_missing_fields"`

	// CreateNewListIfNeeded creates a destination list when the template
	// resolves to none.
	CreateNewListIfNeeded bool `json:"create_new_list_if_needed"`

	// DelayBetweenCalls is the base pacing delay before each phase
	// creation. Zero means DefaultDelay.
	DelayBetweenCalls time.Duration `json:"delay_between_calls"`

	// EnableRollback deletes every created task, children first, when an
	// item-level failure occurs mid-run.
	EnableRollback bool `json:"enable_rollback"`
}

// Delay returns the effective base pacing delay.
func (o Options) Delay() time.Duration {
	if o.DelayBetweenCalls <= 0 {
		return DefaultDelay
	}
	return o.DelayBetweenCalls
}
