package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kalambet/taskbridge/internal/asana"
	"github.com/kalambet/taskbridge/internal/convert"
	"github.com/kalambet/taskbridge/internal/projectcache"
	"github.com/kalambet/taskbridge/internal/query"
)

// --- search ---

var searchFlags struct {
	outputFlags
	workspace string
	assignee  string
	projects  string
	completed bool
	dueBefore string
	dueAfter  string
	sortBy    string
	ascending bool
	limit     int
}

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search tasks in a workspace",
	Long: `Search tasks in a workspace.

Results come back newest first unless --sort is given. Retrieving more than
100 results requires sorting by created_at or modified_at.

Examples:
  taskbridge search "deploy" --completed=false
  taskbridge search --assignee 120001 --limit 250 --format csv --output tasks.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient()
		if err != nil {
			return err
		}
		ws, err := resolveWorkspace(searchFlags.workspace, cfg)
		if err != nil {
			return err
		}

		filters := url.Values{}
		if searchFlags.assignee != "" {
			filters.Set("assignee.any", searchFlags.assignee)
		}
		for _, gid := range splitList(searchFlags.projects) {
			filters.Add("projects.any", gid)
		}
		if cmd.Flags().Changed("completed") {
			filters.Set("completed", fmt.Sprintf("%t", searchFlags.completed))
		}
		if searchFlags.dueBefore != "" {
			filters.Set("due_on.before", searchFlags.dueBefore)
		}
		if searchFlags.dueAfter != "" {
			filters.Set("due_on.after", searchFlags.dueAfter)
		}

		var text string
		if len(args) == 1 {
			text = args[0]
		}

		tasks, err := query.SearchTasks(cmd.Context(), client, query.SearchQuery{
			Workspace:     ws,
			Filters:       filters,
			Text:          text,
			SortBy:        searchFlags.sortBy,
			SortAscending: searchFlags.ascending,
			Fields:        splitList(searchFlags.fields),
			MaxResults:    searchFlags.limit,
		})
		if err != nil {
			return err
		}
		return writeTasks(tasks, searchFlags.outputFlags)
	},
}

func init() {
	addOutputFlags(searchCmd, &searchFlags.outputFlags)
	searchCmd.Flags().StringVar(&searchFlags.workspace, "workspace", "", "workspace gid (default from config)")
	searchCmd.Flags().StringVar(&searchFlags.assignee, "assignee", "", "assignee user gid")
	searchCmd.Flags().StringVar(&searchFlags.projects, "projects", "", "comma-separated project gids")
	searchCmd.Flags().BoolVar(&searchFlags.completed, "completed", false, "filter by completion state")
	searchCmd.Flags().StringVar(&searchFlags.dueBefore, "due-before", "", "due date upper bound, YYYY-MM-DD")
	searchCmd.Flags().StringVar(&searchFlags.dueAfter, "due-after", "", "due date lower bound, YYYY-MM-DD")
	searchCmd.Flags().StringVar(&searchFlags.sortBy, "sort", "", "sort field (created_at, modified_at, ...)")
	searchCmd.Flags().BoolVar(&searchFlags.ascending, "asc", false, "sort ascending")
	searchCmd.Flags().IntVar(&searchFlags.limit, "limit", 50, "maximum results")
}

// --- tasks ---

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Work with individual tasks",
}

var tasksListFlags struct {
	outputFlags
	completed      bool
	section        string
	assignee       string
	unassigned     bool
	completedSince string
	modifiedSince  string
	limit          int
}

var tasksListCmd = &cobra.Command{
	Use:   "list <project-gid>",
	Short: "List the tasks of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		q := query.FetchQuery{
			Project:        args[0],
			Section:        tasksListFlags.section,
			Assignee:       tasksListFlags.assignee,
			Unassigned:     tasksListFlags.unassigned,
			CompletedSince: tasksListFlags.completedSince,
			ModifiedSince:  tasksListFlags.modifiedSince,
			Fields:         splitList(tasksListFlags.fields),
			MaxResults:     tasksListFlags.limit,
		}
		if cmd.Flags().Changed("completed") {
			completed := tasksListFlags.completed
			q.Completed = &completed
		}

		tasks, err := query.FetchProjectTasks(cmd.Context(), client, q)
		if err != nil {
			return err
		}
		return writeTasks(tasks, tasksListFlags.outputFlags)
	},
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <task-gid>",
	Short: "Show one task with its notes as markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		fields := query.ExpandFields([]string{"full"})
		fields = append(fields, "html_notes")
		task, err := client.GetTask(cmd.Context(), args[0], fields)
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", colorize(colorBold, task.Name), colorize(colorCyan, "("+task.GID+")"))
		done := "open"
		if task.Completed {
			done = "completed"
		}
		fmt.Printf("  state:    %s\n", done)
		if task.DueOn != "" {
			fmt.Printf("  due:      %s\n", task.DueOn)
		}
		if task.Assignee != nil {
			fmt.Printf("  assignee: %s\n", task.Assignee.Name)
		}
		for _, m := range task.Memberships {
			if m.Project == nil {
				continue
			}
			line := m.Project.Name
			if m.Section != nil && m.Section.Name != "" {
				line += " / " + m.Section.Name
			}
			fmt.Printf("  project:  %s\n", line)
		}
		if task.PermalinkURL != "" {
			fmt.Printf("  url:      %s\n", task.PermalinkURL)
		}
		if task.HTMLNotes != "" {
			fmt.Printf("\n%s\n", convert.HTMLToMarkdown(task.HTMLNotes))
		}
		return nil
	},
}

var tasksCreateFlags struct {
	notes     string
	notesFile string
	workspace string
	projects  string
	parent    string
	assignee  string
	dueOn     string
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a task; notes are markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient()
		if err != nil {
			return err
		}

		notes, err := readTextFlag(tasksCreateFlags.notes, tasksCreateFlags.notesFile)
		if err != nil {
			return err
		}

		create := asana.CreateTaskRequest{
			Name:     args[0],
			Projects: splitList(tasksCreateFlags.projects),
			Parent:   tasksCreateFlags.parent,
			Assignee: tasksCreateFlags.assignee,
			DueOn:    tasksCreateFlags.dueOn,
		}
		if notes != "" {
			html, err := convert.MarkdownToHTML(notes)
			if err != nil {
				return fmt.Errorf("converting notes: %w", err)
			}
			create.HTMLNotes = html
		}
		if create.Parent == "" && len(create.Projects) == 0 {
			ws, err := resolveWorkspace(tasksCreateFlags.workspace, cfg)
			if err != nil {
				return err
			}
			create.Workspace = ws
		}

		task, err := client.CreateTask(cmd.Context(), create)
		if err != nil {
			return err
		}
		printSuccess("Created task %s (%s)", task.Name, task.GID)
		if task.PermalinkURL != "" {
			fmt.Println(task.PermalinkURL)
		}
		return nil
	},
}

var tasksUpdateFlags struct {
	name      string
	notes     string
	notesFile string
	completed bool
	assignee  string
	dueOn     string
}

var tasksUpdateCmd = &cobra.Command{
	Use:   "update <task-gid>",
	Short: "Update fields of a task; only supplied flags change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		var update asana.UpdateTaskRequest
		changed := false
		if cmd.Flags().Changed("name") {
			update.Name = &tasksUpdateFlags.name
			changed = true
		}
		if cmd.Flags().Changed("notes") || cmd.Flags().Changed("notes-file") {
			notes, err := readTextFlag(tasksUpdateFlags.notes, tasksUpdateFlags.notesFile)
			if err != nil {
				return err
			}
			html, err := convert.MarkdownToHTML(notes)
			if err != nil {
				return fmt.Errorf("converting notes: %w", err)
			}
			update.HTMLNotes = &html
			changed = true
		}
		if cmd.Flags().Changed("completed") {
			update.Completed = &tasksUpdateFlags.completed
			changed = true
		}
		if cmd.Flags().Changed("assignee") {
			update.Assignee = &tasksUpdateFlags.assignee
			changed = true
		}
		if cmd.Flags().Changed("due") {
			update.DueOn = &tasksUpdateFlags.dueOn
			changed = true
		}
		if !changed {
			return fmt.Errorf("nothing to update: pass at least one field flag")
		}

		task, err := client.UpdateTask(cmd.Context(), args[0], update)
		if err != nil {
			return err
		}
		printSuccess("Updated task %s", task.GID)
		return nil
	},
}

var tasksCommentCmd = &cobra.Command{
	Use:   "comment <task-gid> <text...>",
	Short: "Add a markdown comment to a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		text := strings.Join(args[1:], " ")
		html, err := convert.MarkdownToHTML(text)
		if err != nil {
			return fmt.Errorf("converting comment: %w", err)
		}

		story, err := client.CreateStory(cmd.Context(), args[0], html)
		if err != nil {
			return err
		}
		printSuccess("Added comment %s", story.GID)
		return nil
	},
}

func init() {
	addOutputFlags(tasksListCmd, &tasksListFlags.outputFlags)
	tasksListCmd.Flags().BoolVar(&tasksListFlags.completed, "completed", false, "filter by completion state")
	tasksListCmd.Flags().StringVar(&tasksListFlags.section, "section", "", "only tasks in this section gid")
	tasksListCmd.Flags().StringVar(&tasksListFlags.assignee, "assignee", "", "only tasks assigned to this user gid")
	tasksListCmd.Flags().BoolVar(&tasksListFlags.unassigned, "unassigned", false, "only tasks with no assignee (overrides --assignee)")
	tasksListCmd.Flags().StringVar(&tasksListFlags.completedSince, "completed-since", "", "incomplete tasks plus ones completed since this time")
	tasksListCmd.Flags().StringVar(&tasksListFlags.modifiedSince, "modified-since", "", "only tasks modified since this time")
	tasksListCmd.Flags().IntVar(&tasksListFlags.limit, "limit", 50, "maximum results")

	tasksCreateCmd.Flags().StringVar(&tasksCreateFlags.notes, "notes", "", "task description in markdown")
	tasksCreateCmd.Flags().StringVar(&tasksCreateFlags.notesFile, "notes-file", "", "read the description from a markdown file")
	tasksCreateCmd.Flags().StringVar(&tasksCreateFlags.workspace, "workspace", "", "workspace gid (default from config)")
	tasksCreateCmd.Flags().StringVar(&tasksCreateFlags.projects, "projects", "", "comma-separated project gids")
	tasksCreateCmd.Flags().StringVar(&tasksCreateFlags.parent, "parent", "", "parent task gid for a subtask")
	tasksCreateCmd.Flags().StringVar(&tasksCreateFlags.assignee, "assignee", "", "assignee user gid, or 'me'")
	tasksCreateCmd.Flags().StringVar(&tasksCreateFlags.dueOn, "due", "", "due date, YYYY-MM-DD")

	tasksUpdateCmd.Flags().StringVar(&tasksUpdateFlags.name, "name", "", "new task name")
	tasksUpdateCmd.Flags().StringVar(&tasksUpdateFlags.notes, "notes", "", "new description in markdown")
	tasksUpdateCmd.Flags().StringVar(&tasksUpdateFlags.notesFile, "notes-file", "", "read the new description from a markdown file")
	tasksUpdateCmd.Flags().BoolVar(&tasksUpdateFlags.completed, "completed", false, "completion state")
	tasksUpdateCmd.Flags().StringVar(&tasksUpdateFlags.assignee, "assignee", "", "new assignee user gid, or 'me'")
	tasksUpdateCmd.Flags().StringVar(&tasksUpdateFlags.dueOn, "due", "", "new due date, YYYY-MM-DD")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksShowCmd)
	tasksCmd.AddCommand(tasksCreateCmd)
	tasksCmd.AddCommand(tasksUpdateCmd)
	tasksCmd.AddCommand(tasksCommentCmd)
}

// --- projects ---

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Work with projects",
}

var projectsListFlags struct {
	workspace string
	refresh   bool
	asJSON    bool
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the projects of a workspace (cached daily)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient()
		if err != nil {
			return err
		}
		ws, err := resolveWorkspace(projectsListFlags.workspace, cfg)
		if err != nil {
			return err
		}

		cache := projectcache.New(cfg.Cache.Dir, client)
		if projectsListFlags.refresh {
			if err := cache.Invalidate(ws); err != nil {
				return err
			}
		}
		projects, err := cache.Projects(cmd.Context(), ws)
		if err != nil {
			return err
		}

		if projectsListFlags.asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(projects)
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, colorize(colorBold, "GID\tNAME\tTEAM"))
		for _, p := range projects {
			team := ""
			if p.Team != nil {
				team = p.Team.Name
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.GID, p.Name, team)
		}
		return w.Flush()
	},
}

func init() {
	projectsListCmd.Flags().StringVar(&projectsListFlags.workspace, "workspace", "", "workspace gid (default from config)")
	projectsListCmd.Flags().BoolVar(&projectsListFlags.refresh, "refresh", false, "drop the cache and refetch")
	projectsListCmd.Flags().BoolVar(&projectsListFlags.asJSON, "json", false, "print as JSON")
	projectsCmd.AddCommand(projectsListCmd)
}

// --- sections ---

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "Work with project sections",
}

var sectionsListCmd = &cobra.Command{
	Use:   "list <project-gid>",
	Short: "List the sections of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		sections, err := client.ListSections(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, colorize(colorBold, "GID\tNAME"))
		for _, s := range sections {
			fmt.Fprintf(w, "%s\t%s\n", s.GID, s.Name)
		}
		return w.Flush()
	},
}

func init() {
	sectionsCmd.AddCommand(sectionsListCmd)
}

// --- workspaces ---

var workspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "List the workspaces visible to the token",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient()
		if err != nil {
			return err
		}
		workspaces, err := client.ListWorkspaces(cmd.Context())
		if err != nil {
			return err
		}
		for _, ws := range workspaces {
			marker := " "
			if ws.GID == cfg.Asana.DefaultWorkspace {
				marker = colorize(colorGreen, "*")
			}
			fmt.Printf("%s %s  %s\n", marker, colorize(colorCyan, ws.GID), ws.Name)
		}
		return nil
	},
}

// --- whoami ---

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user the access token belongs to",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		user, err := client.GetUser(cmd.Context(), "me")
		if err != nil {
			return err
		}
		fmt.Printf("%s %s", colorize(colorBold, user.Name), colorize(colorCyan, "("+user.GID+")"))
		if user.Email != "" {
			fmt.Printf("  %s", user.Email)
		}
		fmt.Println()
		return nil
	},
}

// --- helpers ---

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readTextFlag resolves a text-or-file flag pair, preferring the file.
func readTextFlag(text, file string) (string, error) {
	if file == "" {
		return text, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	return string(data), nil
}
