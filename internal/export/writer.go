package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kalambet/taskbridge/internal/asana"
)

// csvColumns is the fixed CSV column set. Keeping it stable lets exported
// files from different runs be concatenated or diffed.
var csvColumns = []string{
	"gid", "name", "completed", "due_on", "assignee", "projects", "modified_at", "permalink_url",
}

// WriteJSON writes tasks to path as a pretty-printed JSON array. With append
// set and the file already present, tasks are written as NDJSON lines added
// to the end instead, so repeated exports can accumulate without rewriting.
func WriteJSON(path string, tasks []asana.Task, appendMode bool) error {
	if appendMode {
		if _, err := os.Stat(path); err == nil {
			return appendNDJSON(path, tasks)
		}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tasks: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func appendNDJSON(path string, tasks []asana.Task) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s for append: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, t := range tasks {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("appending task %s: %w", t.GID, err)
		}
	}
	return nil
}

// WriteCSV writes tasks to path with the fixed column set. In append mode the
// header row is skipped when the file already has content.
func WriteCSV(path string, tasks []asana.Task, appendMode bool) error {
	writeHeader := true
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			writeHeader = false
		}
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(csvColumns); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for _, t := range tasks {
		if err := w.Write(csvRow(t)); err != nil {
			return fmt.Errorf("writing task %s: %w", t.GID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return nil
}

func csvRow(t asana.Task) []string {
	return []string{
		t.GID,
		t.Name,
		fmt.Sprintf("%t", t.Completed),
		t.DueOn,
		assigneeName(t),
		strings.Join(projectNames(t), "; "),
		timestamp(t),
		t.PermalinkURL,
	}
}

// WriteMarkdownTable renders tasks as a GitHub-flavored pipe table. In append
// mode the header and separator rows are skipped when the file exists, so
// rows from consecutive exports form one table.
func WriteMarkdownTable(w io.Writer, tasks []asana.Task, withHeader bool) error {
	if withHeader {
		if _, err := fmt.Fprintln(w, "| gid | name | completed | due | assignee | modified |"); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, "| --- | --- | --- | --- | --- | --- |"); err != nil {
			return err
		}
	}
	for _, t := range tasks {
		row := fmt.Sprintf("| %s | %s | %t | %s | %s | %s |",
			mdEscape(t.GID), mdEscape(t.Name), t.Completed,
			mdEscape(t.DueOn), mdEscape(assigneeName(t)), mdEscape(timestamp(t)))
		if _, err := fmt.Fprintln(w, row); err != nil {
			return err
		}
	}
	return nil
}

// WriteMarkdownFile writes the pipe table to a file, appending without a
// header when append mode is set and the file already has content.
func WriteMarkdownFile(path string, tasks []asana.Task, appendMode bool) error {
	withHeader := true
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			withHeader = false
		}
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteMarkdownTable(f, tasks, withHeader); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func assigneeName(t asana.Task) string {
	if t.Assignee == nil {
		return ""
	}
	return t.Assignee.Name
}

func projectNames(t asana.Task) []string {
	var names []string
	for _, m := range t.Memberships {
		if m.Project != nil && m.Project.Name != "" {
			names = append(names, m.Project.Name)
		}
	}
	return names
}

func timestamp(t asana.Task) string {
	if t.ModifiedAt.IsZero() {
		return ""
	}
	return t.ModifiedAt.UTC().Format("2006-01-02T15:04:05Z")
}
