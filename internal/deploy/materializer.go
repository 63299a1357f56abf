package deploy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/velonis/blueprint/internal/clickup"
	"github.com/velonis/blueprint/internal/domain/deploy"
	"github.com/velonis/blueprint/internal/domain/template"
)

// FallbackPriority is used when neither the item nor the template defaults
// set one. 3 is the remote service's "normal".
const FallbackPriority = 3

// Materializer turns phases, actions and sub-actions into remote tasks with
// correct parent linkage, assignee resolution and custom field payloads.
type Materializer struct {
	api    WorkspaceAPI
	log    *deploy.RunLog
	tpl    *template.Template
	fields *FieldValidation
	roles  *RoleDirectory
}

// NewMaterializer wires a materializer for one run.
func NewMaterializer(api WorkspaceAPI, log *deploy.RunLog, tpl *template.Template, fields *FieldValidation, roles *RoleDirectory) *Materializer {
	return &Materializer{api: api, log: log, tpl: tpl, fields: fields, roles: roles}
}

// CreatePhaseTask creates the top-level task for a phase. Phase tasks have
// no parent.
func (m *Materializer) CreatePhaseTask(ctx context.Context, listID string, phase *template.Phase) (*clickup.Task, error) {
	req := clickup.CreateTaskRequest{
		Name:        phase.Name,
		Description: phase.Description,
		Status:      firstNonEmpty(phase.Status, m.tpl.Defaults.Status),
		Priority:    m.priority(phase.Priority),
		Tags:        mergeTags(m.tpl.Defaults.Tags, phase.Tags),
	}
	m.applyDates(&req, phase.Dates)
	m.applyAssignee(&req, phase.AssigneeRole, "phase "+phase.Key)
	req.CustomFields = m.customFields(mergeFields(m.tpl.Defaults.CustomFields, phase.CustomFields))

	task, err := m.api.CreateTask(ctx, listID, req)
	if err != nil {
		return nil, fmt.Errorf("create phase task %q: %w", phase.Name, err)
	}
	m.log.Infof("created phase task %s (%s)", task.ID, phase.Name)
	return task, nil
}

// CreateActionTask creates the task for an action or sub-action under the
// given parent task ID.
func (m *Materializer) CreateActionTask(ctx context.Context, listID string, action *template.Action, parentID string) (*clickup.Task, error) {
	req := clickup.CreateTaskRequest{
		Name:        action.Name,
		Description: action.Description,
		Priority:    m.priority(action.Priority),
		Tags:        action.Tags,
		Parent:      parentID,
	}
	m.applyDates(&req, action.Dates)
	m.applyAssignee(&req, action.AssigneeRole, "action "+action.Name)
	req.CustomFields = m.customFields(action.CustomFields)

	task, err := m.api.CreateTask(ctx, listID, req)
	if err != nil {
		return nil, fmt.Errorf("create action task %q: %w", action.Name, err)
	}
	m.log.Infof("created action task %s (%s) under %s", task.ID, action.Name, parentID)
	return task, nil
}

func (m *Materializer) priority(own int) int {
	if own != 0 {
		return own
	}
	if m.tpl.Defaults.Priority != 0 {
		return m.tpl.Defaults.Priority
	}
	return FallbackPriority
}

func (m *Materializer) applyDates(req *clickup.CreateTaskRequest, dates template.Dates) {
	if dates.Start != "" {
		if ms, hasTime, err := parseDate(dates.Start); err == nil {
			req.StartDate = ms
			req.StartDateTime = hasTime
		} else {
			m.log.Warnf("unparseable start date %q ignored", dates.Start)
		}
	}
	if dates.Due != "" {
		if ms, hasTime, err := parseDate(dates.Due); err == nil {
			req.DueDate = ms
			req.DueDateTime = hasTime
		} else {
			m.log.Warnf("unparseable due date %q ignored", dates.Due)
		}
	}
}

func (m *Materializer) applyAssignee(req *clickup.CreateTaskRequest, role, where string) {
	if role == "" {
		return
	}
	id, ok := m.roles.ResolveRole(role, m.tpl.RolesMap)
	if !ok {
		m.log.Warnf("%s: assignee role %q did not resolve to a workspace member, leaving unassigned", where, role)
		return
	}
	req.Assignees = []int{id}
}

// customFields formats the payload for the fields that resolved to live
// IDs. Values of fields whose name contains "date" are coerced to epoch
// milliseconds when the value parses as a date.
func (m *Materializer) customFields(values map[string]any) []clickup.CustomFieldValue {
	if len(values) == 0 {
		return nil
	}
	out := make([]clickup.CustomFieldValue, 0, len(values))
	for _, name := range sortedKeys(values) {
		id, ok := m.fields.Resolve(name)
		if !ok {
			continue
		}
		value := values[name]
		if strings.Contains(strings.ToLower(name), "date") {
			if s, isString := value.(string); isString {
				if ms, _, err := parseDate(s); err == nil {
					value = ms
				}
			}
		}
		out = append(out, clickup.CustomFieldValue{ID: id, Value: value})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseDate converts "2006-01-02" or RFC 3339 to epoch milliseconds. The
// second return reports whether the source carried a time component.
func parseDate(s string) (int64, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UnixMilli(), false, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), true, nil
	}
	return 0, false, fmt.Errorf("unrecognized date %q", s)
}

// mergeTags unions defaults and own tags, defaults first, order preserved.
func mergeTags(defaults, own []string) []string {
	seen := make(map[string]struct{}, len(defaults)+len(own))
	out := make([]string, 0, len(defaults)+len(own))
	for _, lst := range [][]string{defaults, own} {
		for _, tag := range lst {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeFields(defaults, own map[string]any) map[string]any {
	if len(defaults) == 0 {
		return own
	}
	merged := make(map[string]any, len(defaults)+len(own))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range own {
		merged[k] = v
	}
	return merged
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
