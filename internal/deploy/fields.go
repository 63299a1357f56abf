package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/velonis/blueprint/internal/clickup"
	"github.com/velonis/blueprint/internal/domain/template"
)

// FieldValidation is the outcome of reconciling a template's custom field
// references against the destination list's live fields.
type FieldValidation struct {
	// FieldMap maps each referenced field name, as written in the
	// template, to the live field ID it resolved to.
	FieldMap map[string]string
	// Missing lists referenced names with no live counterpart. Missing
	// fields are a policy decision, not automatically fatal.
	Missing []string
	// Existing is the destination's full live field set.
	Existing []clickup.Field
}

// FieldMapper reconciles template custom field names with a list's fields.
// Exact name matches win over case-insensitive ones so two visually distinct
// live fields are never silently merged.
type FieldMapper struct {
	api WorkspaceAPI
}

// NewFieldMapper returns a mapper over the given API.
func NewFieldMapper(api WorkspaceAPI) *FieldMapper {
	return &FieldMapper{api: api}
}

// ValidateFields resolves every custom field name the template references
// anywhere (defaults, phases, actions, sub-actions) against listID.
func (m *FieldMapper) ValidateFields(ctx context.Context, listID string, tpl *template.Template) (*FieldValidation, error) {
	live, err := m.api.ListFields(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("fetch custom fields for list %s: %w", listID, err)
	}

	byExact := make(map[string]string, len(live))
	byFolded := make(map[string]string, len(live))
	for _, f := range live {
		byExact[f.Name] = f.ID
		folded := strings.ToLower(strings.TrimSpace(f.Name))
		if _, taken := byFolded[folded]; !taken {
			byFolded[folded] = f.ID
		}
	}

	out := &FieldValidation{
		FieldMap: make(map[string]string),
		Existing: live,
	}
	for _, name := range tpl.CustomFieldNames() {
		if id, ok := byExact[name]; ok {
			out.FieldMap[name] = id
			continue
		}
		if id, ok := byFolded[strings.ToLower(strings.TrimSpace(name))]; ok {
			out.FieldMap[name] = id
			continue
		}
		out.Missing = append(out.Missing, name)
	}
	return out, nil
}

// Resolve looks a template field name up in the map, honoring the same
// two-tier policy used when the map was built.
func (v *FieldValidation) Resolve(name string) (string, bool) {
	id, ok := v.FieldMap[name]
	return id, ok
}
