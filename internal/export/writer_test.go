package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/taskbridge/internal/asana"
)

func sampleTasks() []asana.Task {
	return []asana.Task{
		{
			GID:        "1",
			Name:       "Ship v2",
			Completed:  false,
			DueOn:      "2026-09-01",
			Assignee:   &asana.User{GID: "u1", Name: "Alice"},
			ModifiedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		},
		{GID: "2", Name: "Review | merge", Completed: true},
	}
}

func TestWriteJSONFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := WriteJSON(path, sampleTasks(), false); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got []asana.Task
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Ship v2" {
		t.Errorf("unexpected content %+v", got)
	}
	if !strings.Contains(string(data), "\n  ") {
		t.Errorf("fresh JSON export should be pretty-printed")
	}
}

func TestWriteJSONAppendUsesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := WriteJSON(path, sampleTasks()[:1], false); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSON(path, sampleTasks()[1:], true); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	last := lines[len(lines)-1]
	var appended asana.Task
	if err := json.Unmarshal([]byte(last), &appended); err != nil {
		t.Fatalf("appended line is not a standalone JSON object: %v\n%s", err, last)
	}
	if appended.GID != "2" {
		t.Errorf("appended task = %+v", appended)
	}
}

func TestWriteJSONAppendToMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := WriteJSON(path, sampleTasks(), true); err != nil {
		t.Fatalf("append to missing file must create it: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got []asana.Task
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("first append should produce a JSON array: %v", err)
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.csv")
	if err := WriteCSV(path, sampleTasks(), false); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "gid" || rows[0][1] != "name" {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[1][4] != "Alice" {
		t.Errorf("assignee column = %q", rows[1][4])
	}
	if rows[2][1] != "Review | merge" {
		t.Errorf("quoting mangled the name: %q", rows[2][1])
	}
}

func TestWriteCSVAppendSkipsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.csv")
	if err := WriteCSV(path, sampleTasks()[:1], false); err != nil {
		t.Fatal(err)
	}
	if err := WriteCSV(path, sampleTasks()[1:], true); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "gid,name") != 1 {
		t.Errorf("append wrote a second header:\n%s", data)
	}
}

func TestWriteMarkdownTable(t *testing.T) {
	var sb strings.Builder
	if err := WriteMarkdownTable(&sb, sampleTasks(), true); err != nil {
		t.Fatalf("WriteMarkdownTable: %v", err)
	}
	out := sb.String()
	if !strings.HasPrefix(out, "| gid | name |") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, `Review \| merge`) {
		t.Errorf("pipe not escaped: %q", out)
	}
	if !strings.Contains(out, "| Alice |") {
		t.Errorf("assignee missing: %q", out)
	}
}

func TestWriteMarkdownFileAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.md")
	if err := WriteMarkdownFile(path, sampleTasks()[:1], false); err != nil {
		t.Fatal(err)
	}
	if err := WriteMarkdownFile(path, sampleTasks()[1:], true); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	separators := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "| ---") {
			separators++
		}
	}
	if separators != 1 {
		t.Errorf("append wrote %d separator rows:\n%s", separators, data)
	}
	if len(lines) != 4 {
		t.Errorf("got %d lines, want header + separator + 2 rows:\n%s", len(lines), data)
	}
}
