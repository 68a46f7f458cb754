package query

import (
	"regexp"
	"strings"
)

// Named projection presets. Callers can also pass explicit dotted paths;
// every path maps 1:1 to an opt_fields value documented by the API.
var fieldPresets = map[string][]string{
	"minimal": {
		"gid", "name", "completed",
	},
	"standard": {
		"gid", "name", "completed", "due_on", "assignee.name",
		"memberships.project.name", "modified_at", "permalink_url",
	},
	"full": {
		"gid", "name", "notes", "completed", "completed_at", "created_at",
		"modified_at", "due_on", "due_at", "assignee.gid", "assignee.name",
		"parent.gid", "parent.name", "memberships.project.gid",
		"memberships.project.name", "memberships.section.gid",
		"memberships.section.name", "tags.gid", "tags.name", "num_subtasks",
		"custom_fields.gid", "custom_fields.name", "custom_fields.display_value",
		"permalink_url",
	},
}

// customFieldExpansion is what the custom_fields shorthand becomes.
// Projecting a single custom field by id does not work reliably upstream, so
// the id-scoped shorthand is normalized to the same generic form.
var customFieldExpansion = []string{
	"custom_fields.gid", "custom_fields.name", "custom_fields.display_value",
}

var customFieldByIDRe = regexp.MustCompile(`^custom_fields\.\d+(\.|$)`)

// ExpandFields normalizes a field projection list: presets expand to their
// fixed lists, the custom_fields shorthands expand to the three concrete
// dotted paths, duplicates collapse preserving first-seen order, and gid is
// always present even when not requested.
func ExpandFields(fields []string) []string {
	out := []string{"gid"}
	seen := map[string]bool{"gid": true}

	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}

	for _, raw := range fields {
		f := strings.TrimSpace(raw)
		switch {
		case f == "":
		case fieldPresets[f] != nil:
			for _, p := range fieldPresets[f] {
				add(p)
			}
		case f == "custom_fields" || customFieldByIDRe.MatchString(f):
			for _, p := range customFieldExpansion {
				add(p)
			}
		default:
			add(f)
		}
	}

	if len(out) == 1 {
		// No explicit projection: fall back to the standard preset.
		for _, p := range fieldPresets["standard"] {
			add(p)
		}
	}
	return out
}
