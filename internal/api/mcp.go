package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/taskbridge/internal/asana"
	"github.com/kalambet/taskbridge/internal/convert"
	"github.com/kalambet/taskbridge/internal/query"
)

// Client is the slice of the Asana API the tool server drives.
type Client interface {
	SearchTasks(ctx context.Context, workspaceGID string, params url.Values) ([]asana.Task, error)
	ListProjectTasks(ctx context.Context, projectGID string, params url.Values) (asana.TaskPage, error)
	GetTask(ctx context.Context, taskGID string, fields []string) (*asana.Task, error)
	CreateTask(ctx context.Context, req asana.CreateTaskRequest) (*asana.Task, error)
	UpdateTask(ctx context.Context, taskGID string, req asana.UpdateTaskRequest) (*asana.Task, error)
	AddTaskToProject(ctx context.Context, taskGID, projectGID, sectionGID string) error
	RemoveTaskFromProject(ctx context.Context, taskGID, projectGID string) error
	ListSections(ctx context.Context, projectGID string) ([]asana.Section, error)
	ListStories(ctx context.Context, taskGID string) ([]asana.Story, error)
	CreateStory(ctx context.Context, taskGID, htmlText string) (*asana.Story, error)
}

// ProjectSource serves workspace project listings, normally through the
// on-disk cache.
type ProjectSource interface {
	Projects(ctx context.Context, workspaceGID string) ([]asana.Project, error)
}

// Deps holds dependencies for the MCP server.
type Deps struct {
	Client    Client
	Projects  ProjectSource
	Workspace string // default workspace gid for tools that take none
}

// NewMCPServer creates an MCP server with all taskbridge tools registered.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"taskbridge",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("taskbridge — Asana task search, retrieval, and editing. Task notes and comments are exchanged as markdown."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("asana_search_tasks",
			mcp.WithDescription("Search tasks in a workspace. Results are sorted by creation time (newest first) unless sort_by is given."),
			mcp.WithString("text", mcp.Description("Free-text query matched against task names")),
			mcp.WithString("workspace", mcp.Description("Workspace gid (defaults to the configured workspace)")),
			mcp.WithString("assignee", mcp.Description("Assignee user gid")),
			mcp.WithString("projects", mcp.Description("Comma-separated project gids the task must belong to")),
			mcp.WithBoolean("completed", mcp.Description("Filter by completion state")),
			mcp.WithString("due_on_before", mcp.Description("Due date upper bound, YYYY-MM-DD")),
			mcp.WithString("due_on_after", mcp.Description("Due date lower bound, YYYY-MM-DD")),
			mcp.WithString("sort_by", mcp.Description("Sort field; more than 100 results requires created_at or modified_at")),
			mcp.WithBoolean("sort_ascending", mcp.Description("Sort ascending instead of descending")),
			mcp.WithNumber("max_results", mcp.Description("Maximum results to return (default 50)")),
			mcp.WithString("fields", mcp.Description("Comma-separated field projection, or a preset: minimal, standard, full")),
		),
		logged("asana_search_tasks", mcpSearchTasks(deps)),
	)

	s.AddTool(
		mcp.NewTool("asana_list_project_tasks",
			mcp.WithDescription("List the tasks of a project, walking all pages."),
			mcp.WithString("project", mcp.Description("Project gid"), mcp.Required()),
			mcp.WithBoolean("completed", mcp.Description("Filter by completion state")),
			mcp.WithString("section", mcp.Description("Only tasks in this section gid")),
			mcp.WithString("assignee", mcp.Description("Only tasks assigned to this user gid")),
			mcp.WithBoolean("unassigned", mcp.Description("Only tasks with no assignee; overrides assignee")),
			mcp.WithString("completed_since", mcp.Description("Only incomplete tasks or ones completed since this time")),
			mcp.WithString("modified_since", mcp.Description("Only tasks modified since this time")),
			mcp.WithNumber("max_results", mcp.Description("Maximum results to return (default 50)")),
			mcp.WithString("fields", mcp.Description("Comma-separated field projection, or a preset: minimal, standard, full")),
		),
		logged("asana_list_project_tasks", mcpListProjectTasks(deps)),
	)

	s.AddTool(
		mcp.NewTool("asana_get_task",
			mcp.WithDescription("Fetch one task. Notes are returned as markdown."),
			mcp.WithString("task", mcp.Description("Task gid"), mcp.Required()),
			mcp.WithString("fields", mcp.Description("Comma-separated field projection, or a preset: minimal, standard, full")),
		),
		logged("asana_get_task", mcpGetTask(deps)),
	)

	s.AddTool(
		mcp.NewTool("asana_create_task",
			mcp.WithDescription("Create a task. Notes are taken as markdown and converted to Asana rich text."),
			mcp.WithString("name", mcp.Description("Task name"), mcp.Required()),
			mcp.WithString("notes", mcp.Description("Task description in markdown")),
			mcp.WithString("workspace", mcp.Description("Workspace gid (defaults to the configured workspace)")),
			mcp.WithString("projects", mcp.Description("Comma-separated project gids to add the task to")),
			mcp.WithString("parent", mcp.Description("Parent task gid to create a subtask under")),
			mcp.WithString("assignee", mcp.Description("Assignee user gid, or 'me'")),
			mcp.WithString("due_on", mcp.Description("Due date, YYYY-MM-DD")),
		),
		logged("asana_create_task", mcpCreateTask(deps)),
	)

	s.AddTool(
		mcp.NewTool("asana_update_task",
			mcp.WithDescription("Update fields of a task. Only supplied fields change; notes are markdown."),
			mcp.WithString("task", mcp.Description("Task gid"), mcp.Required()),
			mcp.WithString("name", mcp.Description("New task name")),
			mcp.WithString("notes", mcp.Description("New description in markdown; replaces the old one")),
			mcp.WithBoolean("completed", mcp.Description("Completion state")),
			mcp.WithString("assignee", mcp.Description("New assignee user gid, or 'me'")),
			mcp.WithString("due_on", mcp.Description("New due date, YYYY-MM-DD")),
		),
		logged("asana_update_task", mcpUpdateTask(deps)),
	)

	s.AddTool(
		mcp.NewTool("asana_add_comment",
			mcp.WithDescription("Add a comment to a task. Text is markdown; @-mention links of the form [Name](https://app.asana.com/0/profile/GID) become real mentions."),
			mcp.WithString("task", mcp.Description("Task gid"), mcp.Required()),
			mcp.WithString("text", mcp.Description("Comment body in markdown"), mcp.Required()),
		),
		logged("asana_add_comment", mcpAddComment(deps)),
	)

	s.AddTool(
		mcp.NewTool("asana_get_comments",
			mcp.WithDescription("List the comments on a task as markdown, oldest first."),
			mcp.WithString("task", mcp.Description("Task gid"), mcp.Required()),
		),
		logged("asana_get_comments", mcpGetComments(deps)),
	)

	s.AddTool(
		mcp.NewTool("asana_list_projects",
			mcp.WithDescription("List the projects of a workspace. Served from a daily cache."),
			mcp.WithString("workspace", mcp.Description("Workspace gid (defaults to the configured workspace)")),
		),
		logged("asana_list_projects", mcpListProjects(deps)),
	)

	s.AddTool(
		mcp.NewTool("asana_list_sections",
			mcp.WithDescription("List the sections of a project."),
			mcp.WithString("project", mcp.Description("Project gid"), mcp.Required()),
		),
		logged("asana_list_sections", mcpListSections(deps)),
	)

	s.AddTool(
		mcp.NewTool("asana_add_task_to_project",
			mcp.WithDescription("Add a task to a project, optionally into a specific section."),
			mcp.WithString("task", mcp.Description("Task gid"), mcp.Required()),
			mcp.WithString("project", mcp.Description("Project gid"), mcp.Required()),
			mcp.WithString("section", mcp.Description("Section gid within the project")),
		),
		logged("asana_add_task_to_project", mcpAddTaskToProject(deps)),
	)

	s.AddTool(
		mcp.NewTool("asana_remove_task_from_project",
			mcp.WithDescription("Remove a task from a project."),
			mcp.WithString("task", mcp.Description("Task gid"), mcp.Required()),
			mcp.WithString("project", mcp.Description("Project gid"), mcp.Required()),
		),
		logged("asana_remove_task_from_project", mcpRemoveTaskFromProject(deps)),
	)

	return s
}

// logged tags every invocation with a request id so concurrent tool calls can
// be told apart in the log.
func logged(tool string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := uuid.New().String()
		start := time.Now()
		slog.Debug("tool call", "tool", tool, "request_id", id)
		res, err := h(ctx, req)
		switch {
		case err != nil:
			slog.Warn("tool call failed", "tool", tool, "request_id", id, "error", err)
		case res != nil && res.IsError:
			slog.Warn("tool call rejected", "tool", tool, "request_id", id)
		default:
			slog.Debug("tool call done", "tool", tool, "request_id", id, "elapsed", time.Since(start))
		}
		return res, err
	}
}

func (d Deps) workspace(req mcp.CallToolRequest) (string, error) {
	ws := req.GetString("workspace", d.Workspace)
	if ws == "" {
		return "", fmt.Errorf("workspace is required: pass one or configure a default")
	}
	if err := validateGID("workspace", ws); err != nil {
		return "", err
	}
	return ws, nil
}

func mcpSearchTasks(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ws, err := deps.workspace(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		filters := url.Values{}
		args := req.GetArguments()
		if v := req.GetString("assignee", ""); v != "" {
			if err := validateGID("assignee", v); err != nil {
				return mcpError(err.Error()), nil
			}
			filters.Set("assignee.any", v)
		}
		if v := req.GetString("projects", ""); v != "" {
			gids, err := parseGIDList("projects", v)
			if err != nil {
				return mcpError(err.Error()), nil
			}
			for _, gid := range gids {
				filters.Add("projects.any", gid)
			}
		}
		if _, ok := args["completed"]; ok {
			filters.Set("completed", strconv.FormatBool(req.GetBool("completed", false)))
		}
		for _, p := range []struct{ arg, filter string }{
			{"due_on_before", "due_on.before"},
			{"due_on_after", "due_on.after"},
		} {
			if v := req.GetString(p.arg, ""); v != "" {
				if err := validateDate(p.arg, v); err != nil {
					return mcpError(err.Error()), nil
				}
				filters.Set(p.filter, v)
			}
		}

		tasks, err := query.SearchTasks(ctx, deps.Client, query.SearchQuery{
			Workspace:     ws,
			Filters:       filters,
			Text:          req.GetString("text", ""),
			SortBy:        req.GetString("sort_by", ""),
			SortAscending: req.GetBool("sort_ascending", false),
			Fields:        splitFields(req.GetString("fields", "")),
			MaxResults:    req.GetInt("max_results", 50),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcpJSON(tasks)
	}
}

func mcpListProjectTasks(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := req.RequireString("project")
		if err != nil {
			return mcpError("project is required"), nil
		}
		if err := validateGID("project", project); err != nil {
			return mcpError(err.Error()), nil
		}

		q := query.FetchQuery{
			Project:        project,
			Section:        req.GetString("section", ""),
			Assignee:       req.GetString("assignee", ""),
			Unassigned:     req.GetBool("unassigned", false),
			CompletedSince: req.GetString("completed_since", ""),
			ModifiedSince:  req.GetString("modified_since", ""),
			Fields:         splitFields(req.GetString("fields", "")),
			MaxResults:     req.GetInt("max_results", 50),
		}
		if _, ok := req.GetArguments()["completed"]; ok {
			completed := req.GetBool("completed", false)
			q.Completed = &completed
		}

		tasks, err := query.FetchProjectTasks(ctx, deps.Client, q)
		if err != nil {
			return mcpError(fmt.Sprintf("listing failed: %v", err)), nil
		}
		return mcpJSON(tasks)
	}
}

// taskDetail is the asana_get_task payload: the raw task plus its notes
// rendered back to markdown.
type taskDetail struct {
	asana.Task
	NotesMarkdown string `json:"notes_markdown,omitempty"`
}

func mcpGetTask(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskGID, err := req.RequireString("task")
		if err != nil {
			return mcpError("task is required"), nil
		}
		if err := validateGID("task", taskGID); err != nil {
			return mcpError(err.Error()), nil
		}

		fields := query.ExpandFields(splitFields(req.GetString("fields", "")))
		if !fieldsContain(fields, "html_notes") {
			fields = append(fields, "html_notes")
		}

		task, err := deps.Client.GetTask(ctx, taskGID, fields)
		if err != nil {
			return mcpError(fmt.Sprintf("fetching task: %v", err)), nil
		}

		detail := taskDetail{Task: *task}
		if task.HTMLNotes != "" {
			detail.NotesMarkdown = convert.HTMLToMarkdown(task.HTMLNotes)
		}
		return mcpJSON(detail)
	}
}

func mcpCreateTask(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}

		create := asana.CreateTaskRequest{
			Name:     name,
			Parent:   req.GetString("parent", ""),
			Assignee: req.GetString("assignee", ""),
		}

		if v := req.GetString("projects", ""); v != "" {
			gids, err := parseGIDList("projects", v)
			if err != nil {
				return mcpError(err.Error()), nil
			}
			create.Projects = gids
		}
		if create.Parent == "" && len(create.Projects) == 0 {
			ws, err := deps.workspace(req)
			if err != nil {
				return mcpError(err.Error()), nil
			}
			create.Workspace = ws
		}
		if v := req.GetString("due_on", ""); v != "" {
			if err := validateDate("due_on", v); err != nil {
				return mcpError(err.Error()), nil
			}
			create.DueOn = v
		}
		if notes := req.GetString("notes", ""); notes != "" {
			html, err := convert.MarkdownToHTML(notes)
			if err != nil {
				return mcpError(fmt.Sprintf("converting notes: %v", err)), nil
			}
			create.HTMLNotes = html
		}

		task, err := deps.Client.CreateTask(ctx, create)
		if err != nil {
			return mcpError(fmt.Sprintf("creating task: %v", err)), nil
		}
		return mcpJSON(task)
	}
}

func mcpUpdateTask(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskGID, err := req.RequireString("task")
		if err != nil {
			return mcpError("task is required"), nil
		}
		if err := validateGID("task", taskGID); err != nil {
			return mcpError(err.Error()), nil
		}

		var update asana.UpdateTaskRequest
		args := req.GetArguments()
		changed := false

		if v := req.GetString("name", ""); v != "" {
			update.Name = &v
			changed = true
		}
		if _, ok := args["notes"]; ok {
			html, err := convert.MarkdownToHTML(req.GetString("notes", ""))
			if err != nil {
				return mcpError(fmt.Sprintf("converting notes: %v", err)), nil
			}
			update.HTMLNotes = &html
			changed = true
		}
		if _, ok := args["completed"]; ok {
			completed := req.GetBool("completed", false)
			update.Completed = &completed
			changed = true
		}
		if v := req.GetString("assignee", ""); v != "" {
			update.Assignee = &v
			changed = true
		}
		if v := req.GetString("due_on", ""); v != "" {
			if err := validateDate("due_on", v); err != nil {
				return mcpError(err.Error()), nil
			}
			update.DueOn = &v
			changed = true
		}
		if !changed {
			return mcpError("nothing to update: pass at least one field"), nil
		}

		task, err := deps.Client.UpdateTask(ctx, taskGID, update)
		if err != nil {
			return mcpError(fmt.Sprintf("updating task: %v", err)), nil
		}
		return mcpJSON(task)
	}
}

func mcpAddComment(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskGID, err := req.RequireString("task")
		if err != nil {
			return mcpError("task is required"), nil
		}
		if err := validateGID("task", taskGID); err != nil {
			return mcpError(err.Error()), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		html, err := convert.MarkdownToHTML(text)
		if err != nil {
			return mcpError(fmt.Sprintf("converting comment: %v", err)), nil
		}

		story, err := deps.Client.CreateStory(ctx, taskGID, html)
		if err != nil {
			return mcpError(fmt.Sprintf("adding comment: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Added comment %s to task %s", story.GID, taskGID)), nil
	}
}

// comment is the asana_get_comments item shape.
type comment struct {
	GID       string `json:"gid"`
	Author    string `json:"author,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	Text      string `json:"text"`
}

func mcpGetComments(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskGID, err := req.RequireString("task")
		if err != nil {
			return mcpError("task is required"), nil
		}
		if err := validateGID("task", taskGID); err != nil {
			return mcpError(err.Error()), nil
		}

		stories, err := deps.Client.ListStories(ctx, taskGID)
		if err != nil {
			return mcpError(fmt.Sprintf("fetching comments: %v", err)), nil
		}

		comments := make([]comment, 0, len(stories))
		for _, s := range stories {
			if s.Type != "comment_added" {
				continue
			}
			text := s.Text
			if s.HTMLText != "" {
				text = convert.HTMLToMarkdown(s.HTMLText)
			}
			c := comment{GID: s.GID, Text: text}
			if s.CreatedBy != nil {
				c.Author = s.CreatedBy.Name
			}
			if !s.CreatedAt.IsZero() {
				c.CreatedAt = s.CreatedAt.UTC().Format(time.RFC3339)
			}
			comments = append(comments, c)
		}
		return mcpJSON(comments)
	}
}

func mcpListProjects(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ws, err := deps.workspace(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		projects, err := deps.Projects.Projects(ctx, ws)
		if err != nil {
			return mcpError(fmt.Sprintf("listing projects: %v", err)), nil
		}
		return mcpJSON(projects)
	}
}

func mcpListSections(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := req.RequireString("project")
		if err != nil {
			return mcpError("project is required"), nil
		}
		if err := validateGID("project", project); err != nil {
			return mcpError(err.Error()), nil
		}
		sections, err := deps.Client.ListSections(ctx, project)
		if err != nil {
			return mcpError(fmt.Sprintf("listing sections: %v", err)), nil
		}
		return mcpJSON(sections)
	}
}

func mcpAddTaskToProject(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskGID, projectGID, res := requireTaskAndProject(req)
		if res != nil {
			return res, nil
		}
		section := req.GetString("section", "")
		if section != "" {
			if err := validateGID("section", section); err != nil {
				return mcpError(err.Error()), nil
			}
		}
		if err := deps.Client.AddTaskToProject(ctx, taskGID, projectGID, section); err != nil {
			return mcpError(fmt.Sprintf("adding task to project: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Added task %s to project %s", taskGID, projectGID)), nil
	}
}

func mcpRemoveTaskFromProject(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskGID, projectGID, res := requireTaskAndProject(req)
		if res != nil {
			return res, nil
		}
		if err := deps.Client.RemoveTaskFromProject(ctx, taskGID, projectGID); err != nil {
			return mcpError(fmt.Sprintf("removing task from project: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Removed task %s from project %s", taskGID, projectGID)), nil
	}
}

func requireTaskAndProject(req mcp.CallToolRequest) (taskGID, projectGID string, res *mcp.CallToolResult) {
	taskGID, err := req.RequireString("task")
	if err != nil {
		return "", "", mcpError("task is required")
	}
	projectGID, err = req.RequireString("project")
	if err != nil {
		return "", "", mcpError("project is required")
	}
	if err := validateGID("task", taskGID); err != nil {
		return "", "", mcpError(err.Error())
	}
	if err := validateGID("project", projectGID); err != nil {
		return "", "", mcpError(err.Error())
	}
	return taskGID, projectGID, nil
}

func fieldsContain(fields []string, v string) bool {
	for _, f := range fields {
		if f == v {
			return true
		}
	}
	return false
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
