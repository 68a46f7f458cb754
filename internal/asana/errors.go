package asana

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-success response from the Asana API. The message is the
// most specific one the response carried: the structured errors list when
// present, then a bare "error" field, then the generic HTTP status text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("asana: %s (HTTP %d)", e.Message, e.StatusCode)
}

type errorBody struct {
	Errors []struct {
		Message string `json:"message"`
		Help    string `json:"help"`
	} `json:"errors"`
	Error string `json:"error"`
}

func parseAPIError(statusCode int, body []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if len(eb.Errors) > 0 {
			msgs := make([]string, 0, len(eb.Errors))
			for _, e := range eb.Errors {
				if e.Message != "" {
					msgs = append(msgs, e.Message)
				}
			}
			if len(msgs) > 0 {
				return &APIError{StatusCode: statusCode, Message: strings.Join(msgs, "; ")}
			}
		}
		if eb.Error != "" {
			return &APIError{StatusCode: statusCode, Message: eb.Error}
		}
	}
	return &APIError{StatusCode: statusCode, Message: http.StatusText(statusCode)}
}
