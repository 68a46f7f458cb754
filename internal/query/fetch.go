package query

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kalambet/taskbridge/internal/asana"
)

// Lister fetches one page of a project's tasks via offset-token pagination.
type Lister interface {
	ListProjectTasks(ctx context.Context, projectGID string, params url.Values) (asana.TaskPage, error)
}

// FetchQuery describes one logical listing of a project's tasks.
// CompletedSince and ModifiedSince pass straight through to the endpoint;
// the remaining filters are ones the endpoint cannot express and are applied
// client-side, page by page.
type FetchQuery struct {
	Project        string
	Completed      *bool
	CompletedSince string
	ModifiedSince  string
	Section        string
	Assignee       string
	// Unassigned selects tasks with no assignee. When both Unassigned and
	// Assignee are given, Unassigned wins.
	Unassigned bool
	Fields     []string
	MaxResults int
	PageSize   int
}

// FetchProjectTasks walks the listing endpoint with its server-issued offset
// tokens, filtering each page before appending so memory stays bounded to
// one page. Cancellation follows the search engine's policy: partial results
// are discarded.
func FetchProjectTasks(ctx context.Context, l Lister, q FetchQuery) ([]asana.Task, error) {
	if q.Project == "" {
		return nil, validationErrorf("project is required")
	}
	if q.MaxResults <= 0 {
		q.MaxResults = asana.PageSize
	}
	if q.PageSize <= 0 || q.PageSize > asana.PageSize {
		q.PageSize = asana.PageSize
	}

	fields := ExpandFields(q.Fields)
	for _, needed := range filterFields(q) {
		if !contains(fields, needed) {
			fields = append(fields, needed)
		}
	}

	var (
		out    []asana.Task
		offset string
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch cancelled: %w", err)
		}

		params := url.Values{}
		params.Set("opt_fields", strings.Join(fields, ","))
		params.Set("limit", strconv.Itoa(q.PageSize))
		if offset != "" {
			params.Set("offset", offset)
		}
		if q.CompletedSince != "" {
			params.Set("completed_since", q.CompletedSince)
		}
		if q.ModifiedSince != "" {
			params.Set("modified_since", q.ModifiedSince)
		}

		page, err := l.ListProjectTasks(ctx, q.Project, params)
		if err != nil {
			return nil, err
		}

		for _, task := range page.Tasks {
			if !matchesFetchFilters(task, q) {
				continue
			}
			out = append(out, task)
			if len(out) == q.MaxResults {
				return out, nil
			}
		}

		if len(page.Tasks) == 0 || page.NextOffset == "" {
			break
		}
		offset = page.NextOffset
	}
	return out, nil
}

// filterFields lists the projection paths the client-side filters read, so
// they are always present regardless of what the caller projected.
func filterFields(q FetchQuery) []string {
	var needed []string
	if q.Completed != nil {
		needed = append(needed, "completed")
	}
	if q.Section != "" {
		needed = append(needed, "memberships.section.gid")
	}
	if q.Assignee != "" || q.Unassigned {
		needed = append(needed, "assignee.gid")
	}
	return needed
}

func matchesFetchFilters(t asana.Task, q FetchQuery) bool {
	if q.Completed != nil && t.Completed != *q.Completed {
		return false
	}
	if q.Section != "" && !inSection(t, q.Section) {
		return false
	}
	if q.Unassigned {
		return t.Assignee == nil
	}
	if q.Assignee != "" {
		return t.Assignee != nil && t.Assignee.GID == q.Assignee
	}
	return true
}

func inSection(t asana.Task, sectionGID string) bool {
	for _, m := range t.Memberships {
		if m.Section != nil && m.Section.GID == sectionGID {
			return true
		}
	}
	return false
}
