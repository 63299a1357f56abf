package template

import (
	"fmt"
	"strings"
)

// ValidationResult reports the semantic checks run before a deployment is
// allowed to start.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validate runs the semantic rules the structural schema cannot express:
// unique phase keys, description length caps, the action nesting depth limit
// and checklist shape. An empty phase list is a warning here; deployment of
// such a template still fails at run time with zero tasks created.
func (t *Template) Validate() ValidationResult {
	res := ValidationResult{Valid: true}
	fail := func(format string, args ...any) {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}
	warn := func(format string, args ...any) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(t.Meta.Slug) == "" {
		fail("meta.slug is required")
	}
	if len(t.Phases) == 0 {
		warn("template has no phases; deploying it creates nothing")
	}

	seenKeys := make(map[string]struct{})
	for i := range t.Phases {
		p := &t.Phases[i]
		if _, dup := seenKeys[p.Key]; dup {
			fail("duplicate phase key %q", p.Key)
		}
		seenKeys[p.Key] = struct{}{}

		if len(p.Description) > MaxDescriptionLen {
			fail("phase %q: description exceeds %d characters", p.Key, MaxDescriptionLen)
		}
		for j := range p.Actions {
			t.validateAction(&p.Actions[j], p.Key, 1, fail)
		}
	}
	return res
}

func (t *Template) validateAction(a *Action, phaseKey string, depth int, fail func(string, ...any)) {
	if depth > MaxActionDepth {
		fail("phase %q: action %q exceeds maximum nesting depth %d", phaseKey, a.Name, MaxActionDepth)
		return
	}
	if strings.TrimSpace(a.Name) == "" {
		fail("phase %q: action at depth %d has no name", phaseKey, depth)
	}
	if len(a.Description) > MaxDescriptionLen {
		fail("phase %q: action %q description exceeds %d characters", phaseKey, a.Name, MaxDescriptionLen)
	}
	if a.Checklist != nil && strings.TrimSpace(a.Checklist.Title) == "" {
		fail("phase %q: action %q checklist has no title", phaseKey, a.Name)
	}
	for i := range a.Actions {
		t.validateAction(&a.Actions[i], phaseKey, depth+1, fail)
	}
}
