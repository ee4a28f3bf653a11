package api

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxQueryLen bounds the accepted query length in characters.
const MaxQueryLen = 4000

// AssistRequest is the body of POST /api/v1/assist.
type AssistRequest struct {
	Query string `json:"query"`
}

// Validate enforces the query length contract (1..4000 characters).
func (r *AssistRequest) Validate() error {
	q := strings.TrimSpace(r.Query)
	if q == "" {
		return fmt.Errorf("query must not be empty")
	}
	if utf8.RuneCountInString(r.Query) > MaxQueryLen {
		return fmt.Errorf("query exceeds %d characters", MaxQueryLen)
	}
	return nil
}

// AssistResponse is the body of every assist reply. Exactly one of
// Result and Error is populated.
type AssistResponse struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
