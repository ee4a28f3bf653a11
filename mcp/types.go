package mcp

import (
	"encoding/json"

	"github.com/meetkosiso/Multi-Agent-Assistant/types"
)

// Command is one entry of the server's command catalog: its name,
// human-readable description, and the parsed parameter schema used to
// validate arguments before any network call.
type Command struct {
	Name        string
	Description string
	Parameters  types.ParameterSchema
}

// wireCommand mirrors one catalog entry as the server serializes it.
type wireCommand struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// executeRequest is the body of POST /execute.
type executeRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
}

// executeResponse is the body of a successful execution.
type executeResponse struct {
	Result json.RawMessage `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}
