package query

import (
	"reflect"
	"strings"
	"testing"
)

func TestExpandFieldsPresets(t *testing.T) {
	got := ExpandFields([]string{"minimal"})
	want := []string{"gid", "name", "completed"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("minimal preset = %v, want %v", got, want)
	}

	full := ExpandFields([]string{"full"})
	for _, f := range []string{"notes", "permalink_url", "custom_fields.display_value"} {
		if !contains(full, f) {
			t.Errorf("full preset missing %q", f)
		}
	}
}

func TestExpandFieldsEmptyUsesStandard(t *testing.T) {
	got := ExpandFields(nil)
	if !reflect.DeepEqual(got, ExpandFields([]string{"standard"})) {
		t.Errorf("empty projection should equal the standard preset, got %v", got)
	}
}

func TestExpandFieldsGidAlwaysFirst(t *testing.T) {
	got := ExpandFields([]string{"name", "due_on"})
	if got[0] != "gid" {
		t.Errorf("gid must come first, got %v", got)
	}
}

func TestExpandFieldsCustomFieldShorthand(t *testing.T) {
	tests := []struct {
		name string
		in   []string
	}{
		{"bare shorthand", []string{"name", "custom_fields"}},
		{"id-scoped shorthand", []string{"name", "custom_fields.4567"}},
		{"id-scoped with subpath", []string{"name", "custom_fields.4567.display_value"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandFields(tt.in)
			for _, want := range []string{"custom_fields.gid", "custom_fields.name", "custom_fields.display_value"} {
				if !contains(got, want) {
					t.Errorf("missing %q in %v", want, got)
				}
			}
			if strings.Contains(strings.Join(got, ","), "4567") {
				t.Errorf("id-scoped path must not survive expansion: %v", got)
			}
		})
	}
}

func TestExpandFieldsDeduplicates(t *testing.T) {
	got := ExpandFields([]string{"custom_fields", "custom_fields.123", "gid", "name", "name"})
	seen := map[string]int{}
	for _, f := range got {
		seen[f]++
		if seen[f] > 1 {
			t.Errorf("duplicate field %q in %v", f, got)
		}
	}
}

func TestExpandFieldsKeepsExplicitPaths(t *testing.T) {
	got := ExpandFields([]string{" assignee.name ", "due_on"})
	if !contains(got, "assignee.name") || !contains(got, "due_on") {
		t.Errorf("explicit paths lost: %v", got)
	}
}
