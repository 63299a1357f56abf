package deploy

import (
	"context"
	"fmt"

	"github.com/velonis/blueprint/internal/clickup"
	"github.com/velonis/blueprint/internal/domain/deploy"
	"github.com/velonis/blueprint/internal/domain/template"
)

// Attacher creates checklists on tasks and attaches watchers. Watcher
// resolution failures are warnings; only checklist creation itself can
// raise an error.
type Attacher struct {
	api   WorkspaceAPI
	log   *deploy.RunLog
	roles *RoleDirectory
}

// NewAttacher wires an attacher for one run.
func NewAttacher(api WorkspaceAPI, log *deploy.RunLog, roles *RoleDirectory) *Attacher {
	return &Attacher{api: api, log: log, roles: roles}
}

// AttachChecklist creates the checklist and appends its items in literal
// input order with explicit zero-based order indexes.
func (a *Attacher) AttachChecklist(ctx context.Context, taskID string, spec *template.Checklist) (*clickup.Checklist, error) {
	cl, err := a.api.CreateChecklist(ctx, taskID, spec.Title)
	if err != nil {
		return nil, fmt.Errorf("create checklist %q on task %s: %w", spec.Title, taskID, err)
	}
	for i, item := range spec.Items {
		if err := a.api.CreateChecklistItem(ctx, cl.ID, item, i); err != nil {
			return nil, fmt.Errorf("append checklist item %d to %q: %w", i, spec.Title, err)
		}
	}
	a.log.Infof("attached checklist %q with %d items to task %s", spec.Title, len(spec.Items), taskID)
	return cl, nil
}

// AttachWatchers resolves watcher emails through the role directory and
// attaches the ones that resolve, additively. Unknown emails are skipped
// with a warning; an attach failure is reported as a warning too, never an
// error.
func (a *Attacher) AttachWatchers(ctx context.Context, taskID string, emails []string) {
	var ids []int
	for _, email := range emails {
		id, ok := a.roles.UserIDForEmail(email)
		if !ok {
			a.log.Warnf("watcher %q is not a workspace member, skipping", email)
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}
	if err := a.api.AddWatchers(ctx, taskID, ids); err != nil {
		a.log.Warnf("failed to attach %d watchers to task %s: %v", len(ids), taskID, err)
		return
	}
	a.log.Infof("attached %d watchers to task %s", len(ids), taskID)
}
