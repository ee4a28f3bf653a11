package cmdserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20 // 1MB

// Metrics records command execution outcomes. Satisfied by
// *metrics.Collector.
type Metrics interface {
	RecordCommandCall(command, status string, duration time.Duration)
}

// commandSpec is one catalog entry as serialized on the wire.
type commandSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// executeRequest is the body of POST /v1/execute.
type executeRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
}

// catalog lists the commands this server exposes. The parameter
// fragments use the same properties/required shape the client-side
// schema parser consumes.
var catalog = []commandSpec{
	{
		Name:        "web_search",
		Description: "Search the web using DuckDuckGo",
		Parameters: json.RawMessage(`{
			"properties": {
				"query": {"type": "string", "description": "Search query"}
			},
			"required": ["query"]
		}`),
	},
	{
		Name:        "code_execution",
		Description: "Execute Python code safely",
		Parameters: json.RawMessage(`{
			"properties": {
				"code": {"type": "string", "description": "Python code to execute"}
			},
			"required": ["code"]
		}`),
	},
}

// Server serves the command catalog and dispatches executions to the
// search and code backends.
type Server struct {
	searcher Searcher
	runner   CodeRunner
	logger   *zap.Logger
	metrics  Metrics
}

// Option configures optional Server behavior.
type Option func(*Server)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a command server over the given backends.
func NewServer(searcher Searcher, runner CodeRunner, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		searcher: searcher,
		runner:   runner,
		logger:   logger.With(zap.String("component", "command_server")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes of the command server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/commands", s.handleCommands)
	mux.HandleFunc("/v1/execute", s.handleExecute)
	return mux
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, catalog)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	ok := s.dispatch(w, r, req)
	if s.metrics != nil && req.Command != "" {
		outcome := "ok"
		if !ok {
			outcome = "error"
		}
		s.metrics.RecordCommandCall(req.Command, outcome, time.Since(start))
	}
}

// dispatch runs the requested command, writes the response, and
// reports whether the call succeeded.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req executeRequest) bool {
	switch req.Command {
	case "web_search":
		query, ok := req.Parameters["query"].(string)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "Missing 'query' parameter")
			return false
		}
		result, err := s.searcher.Search(r.Context(), query)
		if err != nil {
			s.logger.Error("web search failed", zap.String("query", query), zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return false
		}
		s.writeResult(w, result)
		return true

	case "code_execution":
		code, ok := req.Parameters["code"].(string)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "Missing 'code' parameter")
			return false
		}
		if err := s.runner.Validate(code); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid code: %v", err))
			return false
		}
		result, err := s.runner.Run(r.Context(), code)
		if err != nil {
			s.logger.Error("code execution failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return false
		}
		s.writeResult(w, result)
		return true

	default:
		s.writeError(w, http.StatusNotFound, "Command not found")
		return false
	}
}

func (s *Server) writeResult(w http.ResponseWriter, result string) {
	s.writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}
