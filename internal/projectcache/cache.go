package projectcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/taskbridge/internal/asana"
)

// TTL is how long a cached project listing stays fresh. Project sets change
// rarely, so a day keeps repeat lookups off the network.
const TTL = 24 * time.Hour

// ProjectLister fetches one page of workspace projects.
type ProjectLister interface {
	ListProjects(ctx context.Context, workspaceGID string, params url.Values) (asana.ProjectPage, error)
}

// entry is the on-disk cache format, one JSON file per workspace.
type entry struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Projects  []asana.Project `json:"projects"`
}

// Cache memoizes the full project listing of a workspace on disk. Concurrent
// refreshes of the same workspace collapse into a single upstream walk.
type Cache struct {
	dir    string
	lister ProjectLister
	group  singleflight.Group
	now    func() time.Time
}

func New(dir string, lister ProjectLister) *Cache {
	return &Cache{dir: dir, lister: lister, now: time.Now}
}

// Projects returns the workspace's projects, serving from the cache file when
// it is fresh and refetching otherwise. A missing or corrupt cache file is
// treated the same as an expired one.
func (c *Cache) Projects(ctx context.Context, workspaceGID string) ([]asana.Project, error) {
	if e, ok := c.load(workspaceGID); ok && c.now().Sub(e.FetchedAt) < TTL {
		return e.Projects, nil
	}

	v, err, _ := c.group.Do(workspaceGID, func() (any, error) {
		projects, err := c.fetchAll(ctx, workspaceGID)
		if err != nil {
			return nil, err
		}
		c.store(workspaceGID, projects)
		return projects, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]asana.Project), nil
}

// Invalidate drops the cache file so the next lookup refetches.
func (c *Cache) Invalidate(workspaceGID string) error {
	err := os.Remove(c.path(workspaceGID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing project cache: %w", err)
	}
	return nil
}

func (c *Cache) fetchAll(ctx context.Context, workspaceGID string) ([]asana.Project, error) {
	params := url.Values{}
	params.Set("opt_fields", "gid,name,archived,team.gid,team.name")
	params.Set("limit", "100")

	var all []asana.Project
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := c.lister.ListProjects(ctx, workspaceGID, params)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Projects...)
		if page.NextOffset == "" {
			return all, nil
		}
		params.Set("offset", page.NextOffset)
	}
}

func (c *Cache) load(workspaceGID string) (entry, bool) {
	data, err := os.ReadFile(c.path(workspaceGID))
	if err != nil {
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		slog.Warn("discarding corrupt project cache", "workspace", workspaceGID, "error", err)
		return entry{}, false
	}
	return e, true
}

// store writes the cache file best-effort. A failed write only costs the next
// call a refetch, so it is logged and swallowed.
func (c *Cache) store(workspaceGID string, projects []asana.Project) {
	e := entry{FetchedAt: c.now(), Projects: projects}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		slog.Warn("encoding project cache", "workspace", workspaceGID, "error", err)
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		slog.Warn("creating project cache directory", "dir", c.dir, "error", err)
		return
	}
	if err := os.WriteFile(c.path(workspaceGID), data, 0o644); err != nil {
		slog.Warn("writing project cache", "workspace", workspaceGID, "error", err)
	}
}

func (c *Cache) path(workspaceGID string) string {
	return filepath.Join(c.dir, "projects-"+workspaceGID+".json")
}
