package projectcache

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kalambet/taskbridge/internal/asana"
)

type countingLister struct {
	calls    int
	projects []asana.Project
}

func (c *countingLister) ListProjects(_ context.Context, _ string, _ url.Values) (asana.ProjectPage, error) {
	c.calls++
	return asana.ProjectPage{Projects: c.projects}, nil
}

func TestCacheServesFromDisk(t *testing.T) {
	dir := t.TempDir()
	l := &countingLister{projects: []asana.Project{{GID: "1", Name: "Roadmap"}}}
	c := New(dir, l)

	got, err := c.Projects(context.Background(), "ws1")
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Roadmap" {
		t.Fatalf("unexpected projects %+v", got)
	}
	if l.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", l.calls)
	}

	// Second lookup within TTL comes from the file.
	if _, err := c.Projects(context.Background(), "ws1"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if l.calls != 1 {
		t.Errorf("fresh cache must not refetch, saw %d calls", l.calls)
	}
}

func TestCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	l := &countingLister{projects: []asana.Project{{GID: "1"}}}
	c := New(dir, l)

	now := time.Now()
	c.now = func() time.Time { return now }
	if _, err := c.Projects(context.Background(), "ws1"); err != nil {
		t.Fatal(err)
	}

	c.now = func() time.Time { return now.Add(TTL + time.Minute) }
	if _, err := c.Projects(context.Background(), "ws1"); err != nil {
		t.Fatal(err)
	}
	if l.calls != 2 {
		t.Errorf("expired cache must refetch, saw %d calls", l.calls)
	}
}

func TestCacheCorruptFileRefetches(t *testing.T) {
	dir := t.TempDir()
	l := &countingLister{projects: []asana.Project{{GID: "1"}}}
	c := New(dir, l)

	if err := os.WriteFile(filepath.Join(dir, "projects-ws1.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := c.Projects(context.Background(), "ws1")
	if err != nil {
		t.Fatalf("corrupt cache must fall back to refetch: %v", err)
	}
	if len(got) != 1 || l.calls != 1 {
		t.Errorf("got %d projects after %d calls", len(got), l.calls)
	}
}

func TestCacheInvalidate(t *testing.T) {
	dir := t.TempDir()
	l := &countingLister{projects: []asana.Project{{GID: "1"}}}
	c := New(dir, l)

	if _, err := c.Projects(context.Background(), "ws1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate("ws1"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Projects(context.Background(), "ws1"); err != nil {
		t.Fatal(err)
	}
	if l.calls != 2 {
		t.Errorf("invalidated cache must refetch, saw %d calls", l.calls)
	}

	// Invalidating a workspace that was never cached is not an error.
	if err := c.Invalidate("never-cached"); err != nil {
		t.Errorf("Invalidate on missing file: %v", err)
	}
}

func TestCachePerWorkspaceFiles(t *testing.T) {
	dir := t.TempDir()
	l := &countingLister{projects: []asana.Project{{GID: "1"}}}
	c := New(dir, l)

	if _, err := c.Projects(context.Background(), "ws1"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Projects(context.Background(), "ws2"); err != nil {
		t.Fatal(err)
	}
	if l.calls != 2 {
		t.Errorf("distinct workspaces must not share cache entries, saw %d calls", l.calls)
	}
	for _, name := range []string{"projects-ws1.json", "projects-ws2.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing cache file %s: %v", name, err)
		}
	}
}
