package asana

import "time"

// Task is an Asana task resource. Fields outside the requested projection
// are left at their zero value by the API, so most fields are omitempty.
type Task struct {
	GID          string             `json:"gid"`
	Name         string             `json:"name,omitempty"`
	Notes        string             `json:"notes,omitempty"`
	HTMLNotes    string             `json:"html_notes,omitempty"`
	Completed    bool               `json:"completed,omitempty"`
	CreatedAt    time.Time          `json:"created_at,omitzero"`
	ModifiedAt   time.Time          `json:"modified_at,omitzero"`
	CompletedAt  time.Time          `json:"completed_at,omitzero"`
	DueOn        string             `json:"due_on,omitempty"`
	DueAt        string             `json:"due_at,omitempty"`
	Assignee     *User              `json:"assignee,omitempty"`
	Parent       *Task              `json:"parent,omitempty"`
	Memberships  []Membership       `json:"memberships,omitempty"`
	Tags         []Tag              `json:"tags,omitempty"`
	CustomFields []CustomFieldValue `json:"custom_fields,omitempty"`
	NumSubtasks  int                `json:"num_subtasks,omitempty"`
	PermalinkURL string             `json:"permalink_url,omitempty"`
}

// User is an Asana user resource.
type User struct {
	GID   string `json:"gid"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Project is an Asana project resource.
type Project struct {
	GID      string `json:"gid"`
	Name     string `json:"name,omitempty"`
	Archived bool   `json:"archived,omitempty"`
	Color    string `json:"color,omitempty"`
	Team     *Team  `json:"team,omitempty"`
}

// Team is an Asana team resource.
type Team struct {
	GID  string `json:"gid"`
	Name string `json:"name,omitempty"`
}

// Section is a section within a project.
type Section struct {
	GID  string `json:"gid"`
	Name string `json:"name,omitempty"`
}

// Membership links a task to a project and, optionally, a section.
type Membership struct {
	Project *Project `json:"project,omitempty"`
	Section *Section `json:"section,omitempty"`
}

// Tag is an Asana tag resource.
type Tag struct {
	GID  string `json:"gid"`
	Name string `json:"name,omitempty"`
}

// CustomFieldValue is one custom field value on a task.
type CustomFieldValue struct {
	GID          string `json:"gid"`
	Name         string `json:"name,omitempty"`
	DisplayValue string `json:"display_value,omitempty"`
}

// Workspace is an Asana workspace resource.
type Workspace struct {
	GID  string `json:"gid"`
	Name string `json:"name,omitempty"`
}

// Story is a comment or system event on a task.
type Story struct {
	GID       string    `json:"gid"`
	Type      string    `json:"resource_subtype,omitempty"`
	Text      string    `json:"text,omitempty"`
	HTMLText  string    `json:"html_text,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	CreatedBy *User     `json:"created_by,omitempty"`
}

// TaskPage is one page of a task listing together with the offset token for
// the next page. NextOffset is empty on the final page.
type TaskPage struct {
	Tasks      []Task
	NextOffset string
}

// ProjectPage is one page of a project listing.
type ProjectPage struct {
	Projects   []Project
	NextOffset string
}

// CreateTaskRequest is the body for creating a task. HTMLNotes must already
// be in the Asana rich-text dialect (see the convert package).
type CreateTaskRequest struct {
	Name      string   `json:"name"`
	HTMLNotes string   `json:"html_notes,omitempty"`
	Workspace string   `json:"workspace,omitempty"`
	Projects  []string `json:"projects,omitempty"`
	Parent    string   `json:"parent,omitempty"`
	Assignee  string   `json:"assignee,omitempty"`
	DueOn     string   `json:"due_on,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// UpdateTaskRequest is the body for updating a task. Pointer fields are
// omitted when nil so that only supplied fields are changed.
type UpdateTaskRequest struct {
	Name      *string `json:"name,omitempty"`
	HTMLNotes *string `json:"html_notes,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
	Assignee  *string `json:"assignee,omitempty"`
	DueOn     *string `json:"due_on,omitempty"`
}
