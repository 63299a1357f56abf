package clickup

// User is the authorized API user or a workspace member.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Member wraps a user inside a team listing.
type Member struct {
	User User `json:"user"`
}

// Team is the top-level workspace container.
type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

// Space groups folders and folderless lists inside a team.
type Space struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Folder groups lists inside a space.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// List is the container tasks are created in.
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Field is a custom field defined on a list.
type Field struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Task is the remote task artifact. Only the fields the deployment engine
// and registry read back are modeled.
type Task struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Parent       string       `json:"parent,omitempty"`
	URL          string       `json:"url,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	CustomFields []TaskField  `json:"custom_fields,omitempty"`
}

// TaskField is a custom field as it appears on a fetched task, value
// included.
type TaskField struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

// Checklist is a checklist created on a task.
type Checklist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChecklistItem is one entry of a checklist.
type ChecklistItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OrderIndex int    `json:"orderindex"`
	Resolved   bool   `json:"resolved"`
}

// Attachment is a file attached to a task.
type Attachment struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// CustomFieldValue is the payload form of a custom field on task creation.
type CustomFieldValue struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

// CreateTaskRequest is the body of a task-creation call. Date fields are
// epoch milliseconds; the *_time flags record whether the source value
// carried a time component.
type CreateTaskRequest struct {
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	Status       string             `json:"status,omitempty"`
	Priority     int                `json:"priority,omitempty"`
	Tags         []string           `json:"tags,omitempty"`
	Assignees    []int              `json:"assignees,omitempty"`
	Parent       string             `json:"parent,omitempty"`
	StartDate    int64              `json:"start_date,omitempty"`
	StartDateTime bool              `json:"start_date_time,omitempty"`
	DueDate      int64              `json:"due_date,omitempty"`
	DueDateTime  bool               `json:"due_date_time,omitempty"`
	CustomFields []CustomFieldValue `json:"custom_fields,omitempty"`
}

// CreateListRequest is the body of a list-creation call. Statuses is the
// optional status template; schema-strict workspaces reject it, in which
// case the caller falls back to a bare list plus per-status adds.
type CreateListRequest struct {
	Name     string   `json:"name"`
	Statuses []Status `json:"statuses,omitempty"`
}

// Status is one entry of a list's status scheme.
type Status struct {
	Status     string `json:"status"`
	Type       string `json:"type,omitempty"`
	OrderIndex int    `json:"orderindex"`
	Color      string `json:"color,omitempty"`
}

// WatcherUpdate is the additive watcher mutation on a task. Existing
// watchers are preserved; only Add is populated by this engine.
type WatcherUpdate struct {
	Add    []int `json:"add,omitempty"`
	Remove []int `json:"rem,omitempty"`
}
