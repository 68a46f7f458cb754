package asana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PageSize is the maximum number of items the API returns per call. The
// search endpoint never returns more than this and offers no continuation
// token; listing endpoints accept it as an explicit limit.
const PageSize = 100

// Client talks to the Asana REST API. Construct one at process start with
// NewClient and pass it into the engines; it is read-only after construction
// and safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the given API base URL and personal access
// token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the standard Asana response wrapper.
type envelope struct {
	Data     json.RawMessage `json:"data"`
	NextPage *struct {
		Offset string `json:"offset"`
	} `json:"next_page"`
}

// do issues one request and decodes the data envelope into out. It returns
// the offset token of the next page, if the response carried one.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (string, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(map[string]any{"data": body})
		if err != nil {
			return "", fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", parseAPIError(resp.StatusCode, respBody)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("decoding data: %w", err)
		}
	}

	offset := ""
	if env.NextPage != nil {
		offset = env.NextPage.Offset
	}
	return offset, nil
}

// SearchTasks runs one call against the workspace task search endpoint.
// The endpoint caps results at PageSize and has no server-side pagination;
// multi-page retrieval is the query package's job.
func (c *Client) SearchTasks(ctx context.Context, workspaceGID string, params url.Values) ([]Task, error) {
	var tasks []Task
	path := fmt.Sprintf("/workspaces/%s/tasks/search", workspaceGID)
	if _, err := c.do(ctx, http.MethodGet, path, params, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListProjectTasks fetches one page of a project's tasks using offset-token
// pagination.
func (c *Client) ListProjectTasks(ctx context.Context, projectGID string, params url.Values) (TaskPage, error) {
	var tasks []Task
	path := fmt.Sprintf("/projects/%s/tasks", projectGID)
	offset, err := c.do(ctx, http.MethodGet, path, params, nil, &tasks)
	if err != nil {
		return TaskPage{}, err
	}
	return TaskPage{Tasks: tasks, NextOffset: offset}, nil
}

// GetTask fetches a single task with the given field projection.
func (c *Client) GetTask(ctx context.Context, taskGID string, fields []string) (*Task, error) {
	params := url.Values{}
	if len(fields) > 0 {
		params.Set("opt_fields", strings.Join(fields, ","))
	}
	var task Task
	if _, err := c.do(ctx, http.MethodGet, "/tasks/"+taskGID, params, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	var task Task
	if _, err := c.do(ctx, http.MethodPost, "/tasks", nil, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask updates the supplied fields of a task.
func (c *Client) UpdateTask(ctx context.Context, taskGID string, req UpdateTaskRequest) (*Task, error) {
	var task Task
	if _, err := c.do(ctx, http.MethodPut, "/tasks/"+taskGID, nil, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// AddTaskToProject adds a task to a project, optionally into a section.
func (c *Client) AddTaskToProject(ctx context.Context, taskGID, projectGID, sectionGID string) error {
	body := map[string]string{"project": projectGID}
	if sectionGID != "" {
		body["section"] = sectionGID
	}
	_, err := c.do(ctx, http.MethodPost, "/tasks/"+taskGID+"/addProject", nil, body, nil)
	return err
}

// RemoveTaskFromProject removes a task from a project.
func (c *Client) RemoveTaskFromProject(ctx context.Context, taskGID, projectGID string) error {
	body := map[string]string{"project": projectGID}
	_, err := c.do(ctx, http.MethodPost, "/tasks/"+taskGID+"/removeProject", nil, body, nil)
	return err
}

// ListSections lists the sections of a project.
func (c *Client) ListSections(ctx context.Context, projectGID string) ([]Section, error) {
	var sections []Section
	path := fmt.Sprintf("/projects/%s/sections", projectGID)
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// ListProjects fetches one page of a workspace's projects.
func (c *Client) ListProjects(ctx context.Context, workspaceGID string, params url.Values) (ProjectPage, error) {
	var projects []Project
	path := fmt.Sprintf("/workspaces/%s/projects", workspaceGID)
	offset, err := c.do(ctx, http.MethodGet, path, params, nil, &projects)
	if err != nil {
		return ProjectPage{}, err
	}
	return ProjectPage{Projects: projects, NextOffset: offset}, nil
}

// ListWorkspaces lists the workspaces visible to the token.
func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var workspaces []Workspace
	if _, err := c.do(ctx, http.MethodGet, "/workspaces", nil, nil, &workspaces); err != nil {
		return nil, err
	}
	return workspaces, nil
}

// GetUser fetches a single user ("me" is accepted by the API).
func (c *Client) GetUser(ctx context.Context, userGID string) (*User, error) {
	var user User
	if _, err := c.do(ctx, http.MethodGet, "/users/"+userGID, nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListStories lists the stories (comments and system events) on a task.
func (c *Client) ListStories(ctx context.Context, taskGID string) ([]Story, error) {
	var stories []Story
	path := fmt.Sprintf("/tasks/%s/stories", taskGID)
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

// CreateStory adds a comment to a task. htmlText must already be in the
// Asana rich-text dialect.
func (c *Client) CreateStory(ctx context.Context, taskGID, htmlText string) (*Story, error) {
	body := map[string]string{"html_text": htmlText}
	var story Story
	path := fmt.Sprintf("/tasks/%s/stories", taskGID)
	if _, err := c.do(ctx, http.MethodPost, path, nil, body, &story); err != nil {
		return nil, err
	}
	return &story, nil
}
