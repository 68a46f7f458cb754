package api

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var gidRe = regexp.MustCompile(`^\d+$`)

// validateGID checks that value looks like an Asana gid (all digits). name is
// the parameter name for the error message.
func validateGID(name, value string) error {
	if !gidRe.MatchString(value) {
		return fmt.Errorf("%s must be a numeric gid, got %q", name, value)
	}
	return nil
}

// parseGIDList splits a comma-separated gid list, validating every element.
// Empty input yields nil.
func parseGIDList(name, value string) ([]string, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	gids := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if err := validateGID(name, p); err != nil {
			return nil, err
		}
		gids = append(gids, p)
	}
	return gids, nil
}

// validateDate checks the YYYY-MM-DD form the API expects for date fields.
func validateDate(name, value string) error {
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return fmt.Errorf("%s must be a YYYY-MM-DD date, got %q", name, value)
	}
	return nil
}

// splitFields turns a comma-separated projection list into a slice, dropping
// empty elements. The query package expands presets and shorthands later.
func splitFields(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(value, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
