package deploy_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/velonis/blueprint/internal/clickup"
)

// fakeAPI is a scripted in-memory workspace used by the engine tests.
type fakeAPI struct {
	mu     sync.Mutex
	nextID int

	user    *clickup.User
	userErr error

	teams      []clickup.Team
	spaces     map[string][]clickup.Space
	folders    map[string][]clickup.Folder
	lists      map[string][]clickup.List
	folderless map[string][]clickup.List
	fields     map[string][]clickup.Field

	created []clickup.Task
	deleted []string

	failTask             map[string]error
	failTaskAfter        int // fail every creation once this many tasks exist, 0 = off
	rejectStatusTemplate bool
	statusAddErr         error
	statusesAdded        []string

	checklists     []fakeChecklist
	checklistItems map[string][]fakeItem
	watchers       map[string][]int
}

type fakeChecklist struct {
	ID     string
	TaskID string
	Name   string
}

type fakeItem struct {
	Name       string
	OrderIndex int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		user: &clickup.User{ID: 1, Username: "owner", Email: "owner@example.com"},
		teams: []clickup.Team{{
			ID:   "team1",
			Name: "Acme",
			Members: []clickup.Member{
				{User: clickup.User{ID: 1, Username: "owner", Email: "owner@example.com"}},
				{User: clickup.User{ID: 7, Username: "pm", Email: "pm@example.com"}},
				{User: clickup.User{ID: 9, Username: "dev", Email: "dev@example.com"}},
			},
		}},
		spaces:         map[string][]clickup.Space{},
		folders:        map[string][]clickup.Folder{},
		lists:          map[string][]clickup.List{},
		folderless:     map[string][]clickup.List{},
		fields:         map[string][]clickup.Field{},
		failTask:       map[string]error{},
		checklistItems: map[string][]fakeItem{},
		watchers:       map[string][]int{},
	}
}

func rateLimitErr() error {
	return &clickup.APIError{Status: http.StatusTooManyRequests, Endpoint: "/task", Body: "rate limit"}
}

func (f *fakeAPI) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeAPI) AuthorizedUser(context.Context) (*clickup.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeAPI) Teams(context.Context) ([]clickup.Team, error) {
	return f.teams, nil
}

func (f *fakeAPI) Spaces(_ context.Context, teamID string) ([]clickup.Space, error) {
	return f.spaces[teamID], nil
}

func (f *fakeAPI) Folders(_ context.Context, spaceID string) ([]clickup.Folder, error) {
	return f.folders[spaceID], nil
}

func (f *fakeAPI) Lists(_ context.Context, folderID string) ([]clickup.List, error) {
	return f.lists[folderID], nil
}

func (f *fakeAPI) FolderlessLists(_ context.Context, spaceID string) ([]clickup.List, error) {
	return f.folderless[spaceID], nil
}

func (f *fakeAPI) CreateList(_ context.Context, folderID string, req clickup.CreateListRequest) (*clickup.List, error) {
	if len(req.Statuses) > 0 && f.rejectStatusTemplate {
		return nil, &clickup.APIError{Status: http.StatusBadRequest, Endpoint: "/list", Body: "statuses not allowed"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	list := clickup.List{ID: f.id("list"), Name: req.Name}
	f.lists[folderID] = append(f.lists[folderID], list)
	return &list, nil
}

func (f *fakeAPI) CreateFolderlessList(_ context.Context, spaceID string, req clickup.CreateListRequest) (*clickup.List, error) {
	if len(req.Statuses) > 0 && f.rejectStatusTemplate {
		return nil, &clickup.APIError{Status: http.StatusBadRequest, Endpoint: "/list", Body: "statuses not allowed"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	list := clickup.List{ID: f.id("list"), Name: req.Name}
	f.folderless[spaceID] = append(f.folderless[spaceID], list)
	return &list, nil
}

func (f *fakeAPI) AddListStatus(_ context.Context, listID string, status clickup.Status) error {
	if f.statusAddErr != nil {
		return f.statusAddErr
	}
	f.statusesAdded = append(f.statusesAdded, status.Status)
	return nil
}

func (f *fakeAPI) ListFields(_ context.Context, listID string) ([]clickup.Field, error) {
	return f.fields[listID], nil
}

func (f *fakeAPI) CreateTask(_ context.Context, listID string, req clickup.CreateTaskRequest) (*clickup.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failTask[req.Name]; ok {
		return nil, err
	}
	if f.failTaskAfter > 0 && len(f.created) >= f.failTaskAfter {
		return nil, &clickup.APIError{Status: http.StatusInternalServerError, Endpoint: "/task", Body: "boom"}
	}
	task := clickup.Task{ID: f.id("task"), Name: req.Name, Parent: req.Parent}
	f.created = append(f.created, task)
	return &task, nil
}

func (f *fakeAPI) DeleteTask(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, taskID)
	return nil
}

func (f *fakeAPI) AddWatchers(_ context.Context, taskID string, userIDs []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchers[taskID] = append(f.watchers[taskID], userIDs...)
	return nil
}

func (f *fakeAPI) CreateChecklist(_ context.Context, taskID, name string) (*clickup.Checklist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cl := fakeChecklist{ID: f.id("cl"), TaskID: taskID, Name: name}
	f.checklists = append(f.checklists, cl)
	return &clickup.Checklist{ID: cl.ID, Name: name}, nil
}

func (f *fakeAPI) CreateChecklistItem(_ context.Context, checklistID, name string, orderIndex int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checklistItems[checklistID] = append(f.checklistItems[checklistID], fakeItem{Name: name, OrderIndex: orderIndex})
	return nil
}

func (f *fakeAPI) taskByID(id string) *clickup.Task {
	for i := range f.created {
		if f.created[i].ID == id {
			return &f.created[i]
		}
	}
	return nil
}
