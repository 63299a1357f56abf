// Package registry persists template documents in the remote workspace
// itself: one task per template in a dedicated registry list, the document
// attached as a file and the metadata carried in custom fields.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/velonis/blueprint/internal/clickup"
	"github.com/velonis/blueprint/internal/domain/template"
)

// Metadata field names on registry tasks.
const (
	FieldSlug         = "Slug"
	FieldVersion      = "Version"
	FieldDeployCount  = "Deploy Count"
	FieldLastDeployed = "Last Deployed"
)

// API is the remote surface the registry needs.
type API interface {
	Tasks(ctx context.Context, listID string) ([]clickup.Task, error)
	GetTask(ctx context.Context, taskID string) (*clickup.Task, error)
	CreateTask(ctx context.Context, listID string, req clickup.CreateTaskRequest) (*clickup.Task, error)
	ListFields(ctx context.Context, listID string) ([]clickup.Field, error)
	SetCustomField(ctx context.Context, taskID, fieldID string, value any) error
	UploadAttachment(ctx context.Context, taskID, filename string, content []byte) (*clickup.Attachment, error)
	FetchURL(ctx context.Context, rawURL string) ([]byte, error)
}

var _ API = (*clickup.Client)(nil)

// Entry summarizes one registered template.
type Entry struct {
	TaskID       string `json:"task_id"`
	Slug         string `json:"slug"`
	Version      string `json:"version"`
	DeployCount  int    `json:"deploy_count"`
	LastDeployed int64  `json:"last_deployed,omitempty"`
}

// Registry stores and fetches templates in one remote list.
type Registry struct {
	api    API
	listID string
	log    *slog.Logger
	upload retry.Retry[*clickup.Attachment]
}

// New returns a registry over the given list.
func New(api API, listID string, log *slog.Logger) *Registry {
	return &Registry{
		api:    api,
		listID: listID,
		log:    log,
		upload: retry.New[*clickup.Attachment](retry.Config{
			MaxAttempts:   3,
			InitialDelay:  200 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		}),
	}
}

// Store registers a template document: finds or creates the task named
// after the slug, uploads the document and stamps the metadata fields.
func (r *Registry) Store(ctx context.Context, tpl *template.Template, raw []byte) error {
	task, created, err := r.findOrCreateTask(ctx, tpl.Meta.Slug)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("%s-%s.json", tpl.Meta.Slug, nonEmpty(tpl.Meta.Version, "0"))
	if _, err := r.upload.Do(ctx, func(ctx context.Context) (*clickup.Attachment, error) {
		return r.api.UploadAttachment(ctx, task.ID, filename, raw)
	}); err != nil {
		return fmt.Errorf("upload template document: %w", err)
	}

	fields, err := r.fieldIDs(ctx)
	if err != nil {
		return err
	}
	r.setField(ctx, task.ID, fields, FieldSlug, tpl.Meta.Slug)
	r.setField(ctx, task.ID, fields, FieldVersion, tpl.Meta.Version)
	if created {
		r.setField(ctx, task.ID, fields, FieldDeployCount, 0)
	}
	r.log.Info("template stored in registry", "slug", tpl.Meta.Slug, "version", tpl.Meta.Version, "task", task.ID)
	return nil
}

// Fetch retrieves the newest stored document for a slug.
func (r *Registry) Fetch(ctx context.Context, slug string) (*template.Template, []byte, error) {
	task, err := r.findTask(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	if task == nil {
		return nil, nil, fmt.Errorf("template %q is not registered", slug)
	}

	full, err := r.api.GetTask(ctx, task.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch registry task: %w", err)
	}
	if len(full.Attachments) == 0 {
		return nil, nil, fmt.Errorf("template %q has no stored document", slug)
	}
	latest := full.Attachments[len(full.Attachments)-1]
	raw, err := r.api.FetchURL(ctx, latest.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("download template document: %w", err)
	}
	tpl, err := template.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("stored document for %q: %w", slug, err)
	}
	return tpl, raw, nil
}

// RecordDeployment bumps Deploy Count and stamps Last Deployed after a
// successful run. Failures here are reported but deliberately soft: the
// deployment itself already succeeded.
func (r *Registry) RecordDeployment(ctx context.Context, slug string) error {
	task, err := r.findTask(ctx, slug)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("template %q is not registered", slug)
	}

	full, err := r.api.GetTask(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("fetch registry task: %w", err)
	}
	count := 0
	for _, f := range full.CustomFields {
		if f.Name == FieldDeployCount {
			count = asInt(f.Value)
			break
		}
	}

	fields, err := r.fieldIDs(ctx)
	if err != nil {
		return err
	}
	r.setField(ctx, task.ID, fields, FieldDeployCount, count+1)
	r.setField(ctx, task.ID, fields, FieldLastDeployed, time.Now().UnixMilli())
	r.log.Info("deployment recorded", "slug", slug, "count", count+1)
	return nil
}

// List enumerates the registered templates.
func (r *Registry) List(ctx context.Context) ([]Entry, error) {
	tasks, err := r.api.Tasks(ctx, r.listID)
	if err != nil {
		return nil, fmt.Errorf("list registry tasks: %w", err)
	}
	entries := make([]Entry, 0, len(tasks))
	for _, t := range tasks {
		full, err := r.api.GetTask(ctx, t.ID)
		if err != nil {
			r.log.Warn("skipping unreadable registry task", "task", t.ID, "error", err)
			continue
		}
		entry := Entry{TaskID: t.ID, Slug: t.Name}
		for _, f := range full.CustomFields {
			switch f.Name {
			case FieldSlug:
				if s, ok := f.Value.(string); ok && s != "" {
					entry.Slug = s
				}
			case FieldVersion:
				if s, ok := f.Value.(string); ok {
					entry.Version = s
				}
			case FieldDeployCount:
				entry.DeployCount = asInt(f.Value)
			case FieldLastDeployed:
				entry.LastDeployed = int64(asInt(f.Value))
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *Registry) findTask(ctx context.Context, slug string) (*clickup.Task, error) {
	tasks, err := r.api.Tasks(ctx, r.listID)
	if err != nil {
		return nil, fmt.Errorf("list registry tasks: %w", err)
	}
	for i := range tasks {
		if strings.EqualFold(tasks[i].Name, slug) {
			return &tasks[i], nil
		}
	}
	return nil, nil
}

func (r *Registry) findOrCreateTask(ctx context.Context, slug string) (*clickup.Task, bool, error) {
	task, err := r.findTask(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	if task != nil {
		return task, false, nil
	}
	created, err := r.api.CreateTask(ctx, r.listID, clickup.CreateTaskRequest{
		Name:        slug,
		Description: "Template registry entry. Documents are stored as attachments.",
	})
	if err != nil {
		return nil, false, fmt.Errorf("create registry task for %q: %w", slug, err)
	}
	return created, true, nil
}

// fieldIDs maps the registry list's metadata field names to IDs.
func (r *Registry) fieldIDs(ctx context.Context) (map[string]string, error) {
	live, err := r.api.ListFields(ctx, r.listID)
	if err != nil {
		return nil, fmt.Errorf("fetch registry fields: %w", err)
	}
	ids := make(map[string]string, len(live))
	for _, f := range live {
		ids[f.Name] = f.ID
	}
	return ids, nil
}

// setField writes one metadata field, tolerating lists that lack it.
func (r *Registry) setField(ctx context.Context, taskID string, ids map[string]string, name string, value any) {
	id, ok := ids[name]
	if !ok {
		r.log.Warn("registry list lacks metadata field", "field", name)
		return
	}
	if err := r.api.SetCustomField(ctx, taskID, id, value); err != nil {
		r.log.Warn("failed to set registry field", "field", name, "error", err)
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		var out int
		_, _ = fmt.Sscanf(n, "%d", &out)
		return out
	}
	return 0
}

func nonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
