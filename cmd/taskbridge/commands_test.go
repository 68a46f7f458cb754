package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kalambet/taskbridge/internal/asana"
)

func TestNewClientLoadsConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ASANA_ACCESS_TOKEN", "test-token")
	t.Setenv("TASKBRIDGE_WORKSPACE", "111")

	client, cfg, err := newClient()
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	if client == nil {
		t.Fatal("nil client")
	}
	if cfg == nil || cfg.Asana.DefaultWorkspace != "111" {
		t.Fatalf("config not passed through: %+v", cfg)
	}

	ws, err := resolveWorkspace("", cfg)
	if err != nil || ws != "111" {
		t.Errorf("resolveWorkspace = %q, %v", ws, err)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" 12, 34 ,,56 ")
	if !reflect.DeepEqual(got, []string{"12", "34", "56"}) {
		t.Errorf("got %v", got)
	}
	if splitList("") != nil {
		t.Error("empty input should yield nil")
	}
}

func TestReadTextFlag(t *testing.T) {
	got, err := readTextFlag("inline", "")
	if err != nil || got != "inline" {
		t.Errorf("got %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# from file"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = readTextFlag("ignored", path)
	if err != nil || got != "# from file" {
		t.Errorf("file should win: got %q, %v", got, err)
	}

	if _, err := readTextFlag("", filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("missing file must error")
	}
}

func TestColorizeRespectsNoColor(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "hi"); got != "hi" {
		t.Errorf("noColor output should be plain, got %q", got)
	}

	noColor = false
	if got := colorize(colorGreen, "hi"); !strings.Contains(got, "\033[32m") {
		t.Errorf("colored output missing ANSI code: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 60); got != "short" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("x", 80)
	got := truncate(long, 60)
	if len([]rune(got)) != 63 || !strings.HasSuffix(got, "...") {
		t.Errorf("got %q", got)
	}
}

func TestWriteTasksToFile(t *testing.T) {
	tasks := []asana.Task{{GID: "1", Name: "Ship"}}

	path := filepath.Join(t.TempDir(), "out.json")
	err := writeTasks(tasks, outputFlags{format: "json", output: path})
	if err != nil {
		t.Fatalf("writeTasks: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"Ship"`) {
		t.Errorf("file content: %s", data)
	}

	if err := writeTasks(tasks, outputFlags{format: "table", output: path}); err == nil {
		t.Error("table format with --output must be rejected")
	}
	if err := writeTasks(tasks, outputFlags{format: "xml", output: path}); err == nil {
		t.Error("unknown format must be rejected")
	}
}
