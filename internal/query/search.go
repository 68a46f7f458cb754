package query

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/taskbridge/internal/asana"
)

// Searcher is the single-page search operation the engine drives. One call
// returns at most asana.PageSize items with no continuation token.
type Searcher interface {
	SearchTasks(ctx context.Context, workspaceGID string, params url.Values) ([]asana.Task, error)
}

// SearchQuery describes one logical multi-page search. Filters map 1:1 to
// query parameters of the workspace search endpoint; this engine only adds
// multi-page orchestration on top.
type SearchQuery struct {
	Workspace     string
	Filters       url.Values
	Text          string
	SortBy        string // empty selects created_at descending so pagination stays possible
	SortAscending bool
	Fields        []string
	MaxResults    int
}

// Sort fields whose per-item timestamps increase monotonically and can be
// turned into a continuation cursor.
const (
	sortCreatedAt  = "created_at"
	sortModifiedAt = "modified_at"
)

// cursorTimeFormat is the timestamp layout the search endpoint accepts for
// range filters, millisecond precision.
const cursorTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ValidationError is a local configuration problem detected before any
// network call is made.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// SearchTasks retrieves up to q.MaxResults tasks by issuing repeated search
// calls. The endpoint has no pagination of its own, so after every full page
// the engine synthesizes a cursor from the last item's sort timestamp,
// shifted by one millisecond past the boundary, and injects it as a range
// filter for the next call. Items sharing the boundary's exact millisecond
// are skipped by that shift; this is the documented tie-break imprecision.
//
// On cancellation, already-fetched pages are discarded and only the
// cancellation error is returned.
func SearchTasks(ctx context.Context, s Searcher, q SearchQuery) ([]asana.Task, error) {
	if q.Workspace == "" {
		return nil, validationErrorf("workspace is required for search")
	}
	if q.MaxResults <= 0 {
		q.MaxResults = asana.PageSize
	}

	sortBy := q.SortBy
	ascending := q.SortAscending
	if sortBy == "" {
		sortBy = sortCreatedAt
		ascending = false
	} else if q.MaxResults > asana.PageSize && sortBy != sortCreatedAt && sortBy != sortModifiedAt {
		return nil, validationErrorf(
			"retrieving more than %d results requires sort_by=%s or sort_by=%s (got %q): the search endpoint cannot paginate on other fields",
			asana.PageSize, sortCreatedAt, sortModifiedAt, sortBy)
	}

	// The cursor needs the sort timestamp on every item.
	fields := ExpandFields(q.Fields)
	if !contains(fields, sortBy) {
		fields = append(fields, sortBy)
	}

	var (
		out    []asana.Task
		cursor string
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search cancelled: %w", err)
		}

		params := cloneValues(q.Filters)
		params.Set("opt_fields", strings.Join(fields, ","))
		params.Set("limit", strconv.Itoa(asana.PageSize))
		params.Set("sort_by", sortBy)
		params.Set("sort_ascending", strconv.FormatBool(ascending))
		if q.Text != "" {
			params.Set("text", q.Text)
		}
		if cursor != "" {
			if ascending {
				params.Set(sortBy+".after", cursor)
			} else {
				params.Set(sortBy+".before", cursor)
			}
		}

		page, err := s.SearchTasks(ctx, q.Workspace, params)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)

		if len(out) >= q.MaxResults {
			out = out[:q.MaxResults]
			break
		}
		if len(page) < asana.PageSize {
			break
		}

		last := page[len(page)-1]
		ts := sortTimestamp(last, sortBy)
		if ts.IsZero() {
			// Cannot derive a cursor without the timestamp; return what we
			// have rather than failing the whole request.
			slog.Warn("search pagination stopped: last item missing sort timestamp",
				"sort_by", sortBy, "task", last.GID, "collected", len(out))
			break
		}
		if ascending {
			ts = ts.Add(time.Millisecond)
		} else {
			ts = ts.Add(-time.Millisecond)
		}
		cursor = ts.UTC().Format(cursorTimeFormat)
	}

	if q.Text != "" {
		// The endpoint's own text matching can behave inconsistently when
		// combined with other filters; enforce the match client-side too.
		out = filterByName(out, q.Text)
	}
	return out, nil
}

func sortTimestamp(t asana.Task, sortBy string) time.Time {
	if sortBy == sortModifiedAt {
		return t.ModifiedAt
	}
	return t.CreatedAt
}

func filterByName(tasks []asana.Task, text string) []asana.Task {
	needle := strings.ToLower(text)
	out := tasks[:0]
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			out = append(out, t)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for key, vals := range v {
		out[key] = append([]string(nil), vals...)
	}
	return out
}
