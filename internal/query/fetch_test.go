package query

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/kalambet/taskbridge/internal/asana"
)

type fakeLister struct {
	calls []url.Values
	pages []asana.TaskPage
}

func (f *fakeLister) ListProjectTasks(_ context.Context, _ string, params url.Values) (asana.TaskPage, error) {
	f.calls = append(f.calls, params)
	i := len(f.calls) - 1
	if i >= len(f.pages) {
		return asana.TaskPage{}, nil
	}
	return f.pages[i], nil
}

func makeTaskPage(start, n int, offset string) asana.TaskPage {
	page := asana.TaskPage{NextOffset: offset}
	for i := 0; i < n; i++ {
		page.Tasks = append(page.Tasks, asana.Task{GID: fmt.Sprintf("%d", start+i)})
	}
	return page
}

func TestFetchWalksOffsets(t *testing.T) {
	f := &fakeLister{pages: []asana.TaskPage{
		makeTaskPage(0, 100, "tok1"),
		makeTaskPage(100, 100, "tok2"),
		makeTaskPage(200, 30, ""),
	}}

	got, err := FetchProjectTasks(context.Background(), f, FetchQuery{
		Project:    "777",
		MaxResults: 1000,
	})
	if err != nil {
		t.Fatalf("FetchProjectTasks: %v", err)
	}
	if len(got) != 230 {
		t.Errorf("got %d tasks, want 230", len(got))
	}
	if len(f.calls) != 3 {
		t.Fatalf("got %d calls, want 3", len(f.calls))
	}
	if f.calls[0].Get("offset") != "" {
		t.Errorf("first call must carry no offset")
	}
	if f.calls[1].Get("offset") != "tok1" || f.calls[2].Get("offset") != "tok2" {
		t.Errorf("offset tokens not chained: %v %v", f.calls[1], f.calls[2])
	}
}

func TestFetchCapExactness(t *testing.T) {
	f := &fakeLister{pages: []asana.TaskPage{
		makeTaskPage(0, 100, "tok1"),
		makeTaskPage(100, 100, "tok2"),
	}}

	got, err := FetchProjectTasks(context.Background(), f, FetchQuery{
		Project:    "777",
		MaxResults: 150,
	})
	if err != nil {
		t.Fatalf("FetchProjectTasks: %v", err)
	}
	if len(got) != 150 {
		t.Errorf("got %d tasks, want exactly 150", len(got))
	}
	if len(f.calls) != 2 {
		t.Errorf("cap reached mid-page must stop fetching, saw %d calls", len(f.calls))
	}
}

func TestFetchRequiresProject(t *testing.T) {
	f := &fakeLister{}
	_, err := FetchProjectTasks(context.Background(), f, FetchQuery{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("validation must happen before any network call")
	}
}

func TestFetchClientSideFilters(t *testing.T) {
	yes := true
	no := false
	alice := &asana.User{GID: "u1", Name: "Alice"}
	sectioned := asana.Task{GID: "1", Memberships: []asana.Membership{
		{Section: &asana.Section{GID: "s1"}},
	}}
	tasks := []asana.Task{
		{GID: "10", Completed: true, Assignee: alice},
		{GID: "11", Completed: false, Assignee: alice},
		{GID: "12", Completed: false},
		sectioned,
	}

	tests := []struct {
		name string
		q    FetchQuery
		want []string
	}{
		{
			name: "completed only",
			q:    FetchQuery{Project: "p", Completed: &yes},
			want: []string{"10"},
		},
		{
			name: "incomplete only",
			q:    FetchQuery{Project: "p", Completed: &no},
			want: []string{"11", "12", "1"},
		},
		{
			name: "assignee",
			q:    FetchQuery{Project: "p", Assignee: "u1"},
			want: []string{"10", "11"},
		},
		{
			name: "unassigned",
			q:    FetchQuery{Project: "p", Unassigned: true},
			want: []string{"12", "1"},
		},
		{
			name: "unassigned wins over assignee",
			q:    FetchQuery{Project: "p", Assignee: "u1", Unassigned: true},
			want: []string{"12", "1"},
		},
		{
			name: "section membership",
			q:    FetchQuery{Project: "p", Section: "s1"},
			want: []string{"1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeLister{pages: []asana.TaskPage{{Tasks: tasks}}}
			got, err := FetchProjectTasks(context.Background(), f, tt.q)
			if err != nil {
				t.Fatalf("FetchProjectTasks: %v", err)
			}
			var gids []string
			for _, task := range got {
				gids = append(gids, task.GID)
			}
			if strings.Join(gids, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", gids, tt.want)
			}
		})
	}
}

func TestFetchFilterFieldsAlwaysProjected(t *testing.T) {
	yes := true
	f := &fakeLister{pages: []asana.TaskPage{{}}}
	_, err := FetchProjectTasks(context.Background(), f, FetchQuery{
		Project:    "p",
		Completed:  &yes,
		Section:    "s1",
		Unassigned: true,
		Fields:     []string{"name"},
	})
	if err != nil {
		t.Fatalf("FetchProjectTasks: %v", err)
	}
	opt := f.calls[0].Get("opt_fields")
	for _, want := range []string{"completed", "memberships.section.gid", "assignee.gid"} {
		if !strings.Contains(opt, want) {
			t.Errorf("opt_fields missing filter field %q: %q", want, opt)
		}
	}
}

func TestFetchPassesThroughSinceFilters(t *testing.T) {
	f := &fakeLister{pages: []asana.TaskPage{{}}}
	_, err := FetchProjectTasks(context.Background(), f, FetchQuery{
		Project:        "p",
		CompletedSince: "now",
		ModifiedSince:  "2026-01-01",
	})
	if err != nil {
		t.Fatalf("FetchProjectTasks: %v", err)
	}
	if f.calls[0].Get("completed_since") != "now" {
		t.Errorf("completed_since not forwarded: %v", f.calls[0])
	}
	if f.calls[0].Get("modified_since") != "2026-01-01" {
		t.Errorf("modified_since not forwarded: %v", f.calls[0])
	}
}

func TestFetchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeLister{pages: []asana.TaskPage{makeTaskPage(0, 100, "tok1")}}

	got, err := FetchProjectTasks(ctx, f, FetchQuery{Project: "p", MaxResults: 300})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got != nil {
		t.Errorf("cancelled fetch must return nil results")
	}
	if len(f.calls) != 0 {
		t.Errorf("cancelled fetch must issue no calls, saw %d", len(f.calls))
	}
}
