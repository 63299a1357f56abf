package deploy

import (
	"context"
	"time"
)

// Level is the depth of the task about to be created, used to pick the
// pacing budget for the preceding delay.
type Level int

const (
	LevelPhase Level = iota
	LevelAction
	LevelSubAction
)

// PacingPolicy gates remote calls. Before reserves time ahead of a creation
// call at the given level; Cooldown runs after the remote service reports a
// rate limit. A policy never retries the failed call itself; the
// orchestrator decides what happens next.
type PacingPolicy interface {
	Before(ctx context.Context, level Level) error
	Cooldown(ctx context.Context) error
}

// FixedDelayPolicy waits a fixed base delay before phase creation, half of
// it before actions and a third before sub-actions, and a fixed longer wait
// after a rate limit. This is the remote service's documented-safe pacing;
// swap in another PacingPolicy for exponential behavior.
type FixedDelayPolicy struct {
	Base         time.Duration
	CooldownWait time.Duration
}

// NewFixedDelayPolicy builds the default policy from the run's base delay.
func NewFixedDelayPolicy(base time.Duration) *FixedDelayPolicy {
	return &FixedDelayPolicy{Base: base, CooldownWait: 5 * time.Second}
}

// Before implements PacingPolicy.
func (p *FixedDelayPolicy) Before(ctx context.Context, level Level) error {
	d := p.Base
	switch level {
	case LevelAction:
		d = p.Base / 2
	case LevelSubAction:
		d = p.Base / 3
	}
	return sleep(ctx, d)
}

// Cooldown implements PacingPolicy.
func (p *FixedDelayPolicy) Cooldown(ctx context.Context) error {
	return sleep(ctx, p.CooldownWait)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
