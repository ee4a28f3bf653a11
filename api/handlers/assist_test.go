package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meetkosiso/Multi-Agent-Assistant/api"
	"github.com/meetkosiso/Multi-Agent-Assistant/workflow"
)

type stubRunner struct {
	outcome workflow.Outcome
	queries []string
}

func (s *stubRunner) Run(ctx context.Context, query string) workflow.Outcome {
	s.queries = append(s.queries, query)
	return s.outcome
}

func postAssist(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assist", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeAssist(t *testing.T, rec *httptest.ResponseRecorder) api.AssistResponse {
	t.Helper()
	var resp api.AssistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAssistSuccess(t *testing.T) {
	runner := &stubRunner{outcome: workflow.Outcome{Result: "here is your answer"}}
	h := NewAssistHandler(runner, zap.NewNop())

	rec := postAssist(t, h, `{"query":"explain channels"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeAssist(t, rec)
	assert.Equal(t, "here is your answer", resp.Result)
	assert.Empty(t, resp.Error)
	assert.Equal(t, []string{"explain channels"}, runner.queries)
}

func TestAssistWorkflowFailure(t *testing.T) {
	runner := &stubRunner{outcome: workflow.Outcome{
		Result: "Error during workflow execution: ollama is down",
		Err:    "Error during workflow execution: ollama is down",
	}}
	h := NewAssistHandler(runner, zap.NewNop())

	rec := postAssist(t, h, `{"query":"anything"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decodeAssist(t, rec)
	assert.Empty(t, resp.Result)
	assert.Contains(t, resp.Error, "ollama is down")
}

func TestAssistValidation(t *testing.T) {
	runner := &stubRunner{}
	h := NewAssistHandler(runner, zap.NewNop())

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"not json", `hello`},
		{"empty query", `{"query":""}`},
		{"whitespace query", `{"query":"   "}`},
		{"unknown field", `{"query":"x","extra":true}`},
		{"too long", `{"query":"` + strings.Repeat("a", api.MaxQueryLen+1) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postAssist(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeAssist(t, rec).Error)
		})
	}
	assert.Empty(t, runner.queries, "invalid requests never reach the workflow")
}

func TestAssistMethodNotAllowed(t *testing.T) {
	h := NewAssistHandler(&stubRunner{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assist", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}
