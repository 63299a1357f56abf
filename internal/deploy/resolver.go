package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/velonis/blueprint/internal/clickup"
	"github.com/velonis/blueprint/internal/domain/template"
)

// NotFoundError is raised when a symbolic destination name matches no
// sibling. The message enumerates the live alternatives; callers surface it
// verbatim so the user can pick a real name.
type NotFoundError struct {
	Kind         string // "space", "folder" or "list"
	Name         string
	Alternatives []string
}

func (e *NotFoundError) Error() string {
	if len(e.Alternatives) == 0 {
		return fmt.Sprintf("%s %q not found (no %ss exist at this level)", e.Kind, e.Name, e.Kind)
	}
	return fmt.Sprintf("%s %q not found; available: %s", e.Kind, e.Name, strings.Join(e.Alternatives, ", "))
}

// Resolver turns human-readable space/folder/list names into remote IDs by
// listing siblings and matching case-insensitively. It performs no
// mutations, so a resolution failure aborts a deployment with no side
// effects.
type Resolver struct {
	api WorkspaceAPI
}

// NewResolver returns a resolver over the given API.
func NewResolver(api WorkspaceAPI) *Resolver {
	return &Resolver{api: api}
}

func matchName(want, have string) bool {
	return strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(have))
}

// ResolveSpace resolves a space name within a team.
func (r *Resolver) ResolveSpace(ctx context.Context, teamID, name string) (string, error) {
	spaces, err := r.api.Spaces(ctx, teamID)
	if err != nil {
		return "", fmt.Errorf("list spaces: %w", err)
	}
	names := make([]string, 0, len(spaces))
	for _, s := range spaces {
		if matchName(name, s.Name) {
			return s.ID, nil
		}
		names = append(names, s.Name)
	}
	return "", &NotFoundError{Kind: "space", Name: name, Alternatives: names}
}

// ResolveFolder resolves a folder name within a space.
func (r *Resolver) ResolveFolder(ctx context.Context, spaceID, name string) (string, error) {
	folders, err := r.api.Folders(ctx, spaceID)
	if err != nil {
		return "", fmt.Errorf("list folders: %w", err)
	}
	names := make([]string, 0, len(folders))
	for _, f := range folders {
		if matchName(name, f.Name) {
			return f.ID, nil
		}
		names = append(names, f.Name)
	}
	return "", &NotFoundError{Kind: "folder", Name: name, Alternatives: names}
}

// ResolveList resolves a list name inside a folder when folderID is set,
// otherwise among the space's folderless lists.
func (r *Resolver) ResolveList(ctx context.Context, spaceID, folderID, name string) (string, error) {
	var (
		lists []clickup.List
		err   error
	)
	if folderID != "" {
		lists, err = r.api.Lists(ctx, folderID)
	} else {
		lists, err = r.api.FolderlessLists(ctx, spaceID)
	}
	if err != nil {
		return "", fmt.Errorf("list lists: %w", err)
	}
	names := make([]string, 0, len(lists))
	for _, l := range lists {
		if matchName(name, l.Name) {
			return l.ID, nil
		}
		names = append(names, l.Name)
	}
	return "", &NotFoundError{Kind: "list", Name: name, Alternatives: names}
}

// Destination is the fully resolved creation target.
type Destination struct {
	SpaceID  string
	FolderID string
	ListID   string
}

// Resolve applies the resolution order team->space, space->folder,
// (folder|space)->list to a template destination. IDs supplied directly are
// taken as-is. A zero Destination with nil error means the template names no
// destination at all; the orchestrator decides whether to create one.
func (r *Resolver) Resolve(ctx context.Context, teamID string, d template.Destination) (Destination, error) {
	var out Destination

	out.SpaceID = d.SpaceID
	if out.SpaceID == "" && d.SpaceName != "" {
		id, err := r.ResolveSpace(ctx, teamID, d.SpaceName)
		if err != nil {
			return Destination{}, err
		}
		out.SpaceID = id
	}

	out.FolderID = d.FolderID
	if out.FolderID == "" && d.FolderName != "" {
		if out.SpaceID == "" {
			return Destination{}, fmt.Errorf("folder %q cannot be resolved without a space", d.FolderName)
		}
		id, err := r.ResolveFolder(ctx, out.SpaceID, d.FolderName)
		if err != nil {
			return Destination{}, err
		}
		out.FolderID = id
	}

	out.ListID = d.ListID
	if out.ListID == "" && d.ListName != "" {
		if out.SpaceID == "" && out.FolderID == "" {
			return Destination{}, fmt.Errorf("list %q cannot be resolved without a space or folder", d.ListName)
		}
		id, err := r.ResolveList(ctx, out.SpaceID, out.FolderID, d.ListName)
		if err != nil {
			return Destination{}, err
		}
		out.ListID = id
	}

	return out, nil
}
