package asana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token")
}

func TestSearchTasksSendsAuthAndParams(t *testing.T) {
	var gotAuth, gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		if r.URL.Path != "/workspaces/42/tasks/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"gid": "1", "name": "first"}},
		})
	})

	params := map[string][]string{"sort_by": {"created_at"}}
	tasks, err := client.SearchTasks(context.Background(), "42", params)
	if err != nil {
		t.Fatalf("SearchTasks: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if !strings.Contains(gotQuery, "sort_by=created_at") {
		t.Errorf("sort_by not forwarded: %q", gotQuery)
	}
	if len(tasks) != 1 || tasks[0].GID != "1" {
		t.Errorf("unexpected tasks %+v", tasks)
	}
}

func TestListProjectTasksReturnsOffset(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data":      []map[string]any{{"gid": "10"}, {"gid": "11"}},
			"next_page": map[string]any{"offset": "tok123"},
		})
	})

	page, err := client.ListProjectTasks(context.Background(), "7", nil)
	if err != nil {
		t.Fatalf("ListProjectTasks: %v", err)
	}
	if len(page.Tasks) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(page.Tasks))
	}
	if page.NextOffset != "tok123" {
		t.Errorf("expected offset tok123, got %q", page.NextOffset)
	}
}

func TestCreateTaskWrapsDataEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data CreateTaskRequest `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if body.Data.Name != "New task" {
			t.Errorf("unexpected name %q", body.Data.Name)
		}
		if body.Data.HTMLNotes != "<body>hello</body>" {
			t.Errorf("unexpected html_notes %q", body.Data.HTMLNotes)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"gid": "99", "name": "New task"}})
	})

	task, err := client.CreateTask(context.Background(), CreateTaskRequest{
		Name:      "New task",
		HTMLNotes: "<body>hello</body>",
		Projects:  []string{"7"},
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.GID != "99" {
		t.Errorf("unexpected gid %q", task.GID)
	}
}

func TestErrorExtractionPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "structured errors list",
			status:  400,
			body:    `{"errors":[{"message":"Not a valid date"},{"message":"Missing workspace"}]}`,
			wantMsg: "Not a valid date; Missing workspace",
		},
		{
			name:    "single error field",
			status:  401,
			body:    `{"error":"token expired"}`,
			wantMsg: "token expired",
		},
		{
			name:    "generic http fallback",
			status:  502,
			body:    `<html>gateway</html>`,
			wantMsg: "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := parseAPIError(tt.status, []byte(tt.body))
			if apiErr.Message != tt.wantMsg {
				t.Errorf("got message %q, want %q", apiErr.Message, tt.wantMsg)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("got status %d, want %d", apiErr.StatusCode, tt.status)
			}
		})
	}
}

func TestAPIErrorSurfacedFromResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":[{"message":"Forbidden workspace"}]}`))
	})

	_, err := client.GetTask(context.Background(), "5", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "Forbidden workspace" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestContextCancellationDistinct(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListWorkspaces(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if _, ok := err.(*APIError); ok {
		t.Errorf("cancellation must not surface as an APIError")
	}
}
