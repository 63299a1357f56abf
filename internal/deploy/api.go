// Package deploy implements the template deployment engine: destination
// resolution, custom field mapping, task materialization, checklist and
// watcher attachment, pacing, rollback and the orchestrating state machine.
package deploy

import (
	"context"

	"github.com/velonis/blueprint/internal/clickup"
)

// WorkspaceAPI is the slice of the remote service the engine talks to.
// *clickup.Client satisfies it; tests substitute a scripted fake.
type WorkspaceAPI interface {
	AuthorizedUser(ctx context.Context) (*clickup.User, error)
	Teams(ctx context.Context) ([]clickup.Team, error)
	Spaces(ctx context.Context, teamID string) ([]clickup.Space, error)
	Folders(ctx context.Context, spaceID string) ([]clickup.Folder, error)
	Lists(ctx context.Context, folderID string) ([]clickup.List, error)
	FolderlessLists(ctx context.Context, spaceID string) ([]clickup.List, error)
	CreateList(ctx context.Context, folderID string, req clickup.CreateListRequest) (*clickup.List, error)
	CreateFolderlessList(ctx context.Context, spaceID string, req clickup.CreateListRequest) (*clickup.List, error)
	AddListStatus(ctx context.Context, listID string, status clickup.Status) error
	ListFields(ctx context.Context, listID string) ([]clickup.Field, error)
	CreateTask(ctx context.Context, listID string, req clickup.CreateTaskRequest) (*clickup.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	AddWatchers(ctx context.Context, taskID string, userIDs []int) error
	CreateChecklist(ctx context.Context, taskID, name string) (*clickup.Checklist, error)
	CreateChecklistItem(ctx context.Context, checklistID, name string, orderIndex int) error
}

var _ WorkspaceAPI = (*clickup.Client)(nil)
