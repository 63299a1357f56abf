// Package template defines the deployable template document: a tree of
// phases, actions and sub-actions plus the destination and defaults that
// control where and how the tree is materialized in the remote workspace.
package template

import "sort"

// MaxActionDepth bounds action nesting below a phase. Templates in the wild
// nest one level (action -> sub-action); three levels bounds the worst-case
// API call fan-out while leaving headroom.
const MaxActionDepth = 3

// MaxDescriptionLen is the remote service's practical cap for descriptions.
const MaxDescriptionLen = 500

// Meta identifies a template in the registry.
type Meta struct {
	Slug    string `json:"slug" yaml:"slug"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Version string `json:"version" yaml:"version"`
}

// Destination points at the remote container tasks are created in. Exactly
// one resolvable chain must exist: a list (by ID or name), or a folder, or a
// space. Names are resolved case-insensitively against live siblings.
type Destination struct {
	SpaceID    string `json:"space_id,omitempty" yaml:"space_id,omitempty"`
	SpaceName  string `json:"space_name,omitempty" yaml:"space_name,omitempty"`
	FolderID   string `json:"folder_id,omitempty" yaml:"folder_id,omitempty"`
	FolderName string `json:"folder_name,omitempty" yaml:"folder_name,omitempty"`
	ListID     string `json:"list_id,omitempty" yaml:"list_id,omitempty"`
	ListName   string `json:"list_name,omitempty" yaml:"list_name,omitempty"`
}

// Empty reports whether no destination reference is present at all.
func (d Destination) Empty() bool {
	return d.SpaceID == "" && d.SpaceName == "" &&
		d.FolderID == "" && d.FolderName == "" &&
		d.ListID == "" && d.ListName == ""
}

// Defaults apply to every phase unless the phase overrides them.
type Defaults struct {
	Status       string         `json:"status,omitempty" yaml:"status,omitempty"`
	Priority     int            `json:"priority,omitempty" yaml:"priority,omitempty"`
	Tags         []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty" yaml:"custom_fields,omitempty"`
}

// Dates carries the optional start/due pair. Values are "2006-01-02" or
// RFC 3339; a bare date means the time component is absent.
type Dates struct {
	Start string `json:"start,omitempty" yaml:"start,omitempty"`
	Due   string `json:"due,omitempty" yaml:"due,omitempty"`
}

// Checklist is attached to the task created for its carrying action.
type Checklist struct {
	Title string   `json:"title" yaml:"title"`
	Items []string `json:"items" yaml:"items"`
}

// Action is one task under a phase. Actions nest recursively: a child in
// Actions becomes a sub-action task parented to this action's task.
type Action struct {
	Name         string         `json:"name" yaml:"name"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	AssigneeRole string         `json:"assignee_role,omitempty" yaml:"assignee_role,omitempty"`
	Dates        Dates          `json:"dates,omitempty" yaml:"dates,omitempty"`
	Priority     int            `json:"priority,omitempty" yaml:"priority,omitempty"`
	Tags         []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty" yaml:"custom_fields,omitempty"`
	Watchers     []string       `json:"watchers,omitempty" yaml:"watchers,omitempty"`
	Checklist    *Checklist     `json:"checklist,omitempty" yaml:"checklist,omitempty"`
	Actions      []Action       `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Phase is a top-level stage of the template. Key must be unique across the
// template's phases.
type Phase struct {
	Key          string         `json:"key" yaml:"key"`
	Name         string         `json:"name" yaml:"name"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	AssigneeRole string         `json:"assignee_role,omitempty" yaml:"assignee_role,omitempty"`
	Dates        Dates          `json:"dates,omitempty" yaml:"dates,omitempty"`
	Status       string         `json:"status,omitempty" yaml:"status,omitempty"`
	Priority     int            `json:"priority,omitempty" yaml:"priority,omitempty"`
	Tags         []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty" yaml:"custom_fields,omitempty"`
	Actions      []Action       `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Template is the root document.
type Template struct {
	Meta        Meta              `json:"meta" yaml:"meta"`
	Destination Destination       `json:"destination" yaml:"destination"`
	Defaults    Defaults          `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	RolesMap    map[string]string `json:"roles_map,omitempty" yaml:"roles_map,omitempty"`
	Phases      []Phase           `json:"phases" yaml:"phases"`
}

// CustomFieldNames collects the union of custom field names referenced by the
// defaults, every phase and every action at any depth. Names within one
// custom_fields block are sorted so the result is deterministic.
func (t *Template) CustomFieldNames() []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(fields map[string]any) {
		keys := make([]string, 0, len(fields))
		for name := range fields {
			keys = append(keys, name)
		}
		sort.Strings(keys)
		for _, name := range keys {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	add(t.Defaults.CustomFields)
	var walk func(actions []Action)
	walk = func(actions []Action) {
		for i := range actions {
			add(actions[i].CustomFields)
			walk(actions[i].Actions)
		}
	}
	for i := range t.Phases {
		add(t.Phases[i].CustomFields)
		walk(t.Phases[i].Actions)
	}
	return names
}

// Emails collects every email the template references through roles or
// watcher lists, first-seen order.
func (t *Template) Emails() []string {
	seen := make(map[string]struct{})
	var emails []string
	add := func(email string) {
		if email == "" {
			return
		}
		if _, ok := seen[email]; ok {
			return
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}

	roles := make([]string, 0, len(t.RolesMap))
	for role := range t.RolesMap {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		add(t.RolesMap[role])
	}
	var walk func(actions []Action)
	walk = func(actions []Action) {
		for i := range actions {
			for _, w := range actions[i].Watchers {
				add(w)
			}
			walk(actions[i].Actions)
		}
	}
	for i := range t.Phases {
		walk(t.Phases[i].Actions)
	}
	return emails
}
