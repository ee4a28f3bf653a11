package cmdserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	result string
	err    error
	gotQ   string
}

func (f *fakeSearcher) Search(_ context.Context, query string) (string, error) {
	f.gotQ = query
	return f.result, f.err
}

type fakeRunner struct {
	validateErr error
	out         string
	runErr      error
	gotCode     string
}

func (f *fakeRunner) Validate(string) error { return f.validateErr }

func (f *fakeRunner) Run(_ context.Context, code string) (string, error) {
	f.gotCode = code
	return f.out, f.runErr
}

func newTestServer(searcher Searcher, runner CodeRunner) *httptest.Server {
	return httptest.NewServer(NewServer(searcher, runner, nil).Handler())
}

func doExecute(t *testing.T, baseURL, body string) (*http.Response, map[string]string) {
	t.Helper()
	resp, err := http.Post(baseURL+"/v1/execute", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestCommandCatalog(t *testing.T) {
	ts := newTestServer(&fakeSearcher{}, &fakeRunner{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/commands")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var cmds []commandSpec
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cmds))
	require.Len(t, cmds, 2)
	assert.Equal(t, "web_search", cmds[0].Name)
	assert.Equal(t, "code_execution", cmds[1].Name)
	assert.Contains(t, string(cmds[0].Parameters), `"query"`)
	assert.Contains(t, string(cmds[1].Parameters), `"code"`)
}

func TestExecuteWebSearch(t *testing.T) {
	searcher := &fakeSearcher{result: "Go: a programming language (https://go.dev)"}
	ts := newTestServer(searcher, &fakeRunner{})
	defer ts.Close()

	resp, out := doExecute(t, ts.URL, `{"command":"web_search","parameters":{"query":"golang"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, searcher.result, out["result"])
	assert.Equal(t, "golang", searcher.gotQ)
}

func TestExecuteWebSearchMissingQuery(t *testing.T) {
	ts := newTestServer(&fakeSearcher{}, &fakeRunner{})
	defer ts.Close()

	resp, out := doExecute(t, ts.URL, `{"command":"web_search","parameters":{}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Missing 'query' parameter", out["error"])
}

func TestExecuteWebSearchFailure(t *testing.T) {
	ts := newTestServer(&fakeSearcher{err: errors.New("search returned status 503")}, &fakeRunner{})
	defer ts.Close()

	resp, out := doExecute(t, ts.URL, `{"command":"web_search","parameters":{"query":"x"}}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "search returned status 503", out["error"])
}

func TestExecuteCodeExecution(t *testing.T) {
	runner := &fakeRunner{out: "4\n"}
	ts := newTestServer(&fakeSearcher{}, runner)
	defer ts.Close()

	resp, out := doExecute(t, ts.URL, `{"command":"code_execution","parameters":{"code":"print(2+2)"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "4\n", out["result"])
	assert.Equal(t, "print(2+2)", runner.gotCode)
}

func TestExecuteCodeRejected(t *testing.T) {
	ts := newTestServer(&fakeSearcher{}, &fakeRunner{validateErr: errors.New("imports are not allowed")})
	defer ts.Close()

	resp, out := doExecute(t, ts.URL, `{"command":"code_execution","parameters":{"code":"import os"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid code: imports are not allowed", out["error"])
}

func TestExecuteCodeRuntimeFailure(t *testing.T) {
	ts := newTestServer(&fakeSearcher{}, &fakeRunner{runErr: errors.New("ZeroDivisionError: division by zero")})
	defer ts.Close()

	resp, out := doExecute(t, ts.URL, `{"command":"code_execution","parameters":{"code":"1/0"}}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "ZeroDivisionError: division by zero", out["error"])
}

func TestExecuteCodeMissingParameter(t *testing.T) {
	ts := newTestServer(&fakeSearcher{}, &fakeRunner{})
	defer ts.Close()

	resp, out := doExecute(t, ts.URL, `{"command":"code_execution","parameters":{}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Missing 'code' parameter", out["error"])
}

func TestExecuteUnknownCommand(t *testing.T) {
	ts := newTestServer(&fakeSearcher{}, &fakeRunner{})
	defer ts.Close()

	resp, out := doExecute(t, ts.URL, `{"command":"file_delete","parameters":{}}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Command not found", out["error"])
}

func TestExecuteBadBody(t *testing.T) {
	ts := newTestServer(&fakeSearcher{}, &fakeRunner{})
	defer ts.Close()

	resp, out := doExecute(t, ts.URL, `{"command":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid request body", out["error"])
}

func TestExecuteMethodNotAllowed(t *testing.T) {
	ts := newTestServer(&fakeSearcher{}, &fakeRunner{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/execute")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}

type countingMetrics struct {
	commands []string
	statuses []string
}

func (m *countingMetrics) RecordCommandCall(command, status string, _ time.Duration) {
	m.commands = append(m.commands, command)
	m.statuses = append(m.statuses, status)
}

func TestExecuteRecordsMetrics(t *testing.T) {
	rec := &countingMetrics{}
	srv := NewServer(&fakeSearcher{result: "ok"}, &fakeRunner{validateErr: errors.New("no")}, nil, WithMetrics(rec))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	doExecute(t, ts.URL, `{"command":"web_search","parameters":{"query":"x"}}`)
	doExecute(t, ts.URL, `{"command":"code_execution","parameters":{"code":"x"}}`)

	assert.Equal(t, []string{"web_search", "code_execution"}, rec.commands)
	assert.Equal(t, []string{"ok", "error"}, rec.statuses)
}
