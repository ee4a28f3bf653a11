package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meetkosiso/Multi-Agent-Assistant/types"
)

const testCatalog = `[
	{
		"name": "web_search",
		"description": "Search the web",
		"parameters": {
			"properties": {"query": {"type": "string"}},
			"required": ["query"]
		}
	},
	{
		"name": "code_execution",
		"description": "Run a Python snippet",
		"parameters": {
			"properties": {"code": {"type": "string"}},
			"required": ["code"]
		}
	}
]`

// commandServer is a scripted fake of the remote command endpoint that
// counts catalog and execute requests.
type commandServer struct {
	srv          *httptest.Server
	catalogHits  atomic.Int64
	executeHits  atomic.Int64
	lastExecBody []byte
	mu           sync.Mutex
}

func newCommandServer(t *testing.T) *commandServer {
	t.Helper()
	cs := &commandServer{}
	cs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/commands":
			cs.catalogHits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(testCatalog))
		case "/v1/execute":
			cs.executeHits.Add(1)
			body, _ := io.ReadAll(r.Body)
			cs.mu.Lock()
			cs.lastExecBody = body
			cs.mu.Unlock()

			var req executeRequest
			if err := json.Unmarshal(body, &req); err != nil {
				http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
				return
			}
			if req.Command == "web_search" {
				json.NewEncoder(w).Encode(map[string]any{"result": "search results for " + req.Parameters["query"].(string)})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"stdout": "ok"}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(cs.srv.Close)
	return cs
}

func (cs *commandServer) client() *Client {
	return NewClient(Config{BaseURL: cs.srv.URL}, zap.NewNop())
}

func TestClientCatalogFetchedOnce(t *testing.T) {
	cs := newCommandServer(t)
	client := cs.client()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		commands, err := client.ListCommands(ctx)
		require.NoError(t, err)
		require.Len(t, commands, 2)
		assert.Equal(t, "code_execution", commands[0].Name)
		assert.Equal(t, "web_search", commands[1].Name)
	}

	_, err := client.CallCommand(ctx, "web_search", map[string]any{"query": "go"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), cs.catalogHits.Load())
}

func TestClientConcurrentCatalogSingleFetch(t *testing.T) {
	cs := newCommandServer(t)
	client := cs.client()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.ListCommands(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), cs.catalogHits.Load())
}

func TestCallCommandPayload(t *testing.T) {
	cs := newCommandServer(t)
	client := cs.client()

	result, err := client.CallCommand(context.Background(), "web_search", map[string]any{"query": "golang"})
	require.NoError(t, err)
	assert.Equal(t, "search results for golang", result)

	cs.mu.Lock()
	body := string(cs.lastExecBody)
	cs.mu.Unlock()
	assert.JSONEq(t, `{"command":"web_search","parameters":{"query":"golang"}}`, body)
}

func TestCallCommandUnknownNameNoNetwork(t *testing.T) {
	cs := newCommandServer(t)
	client := cs.client()

	_, err := client.CallCommand(context.Background(), "no_such_command", nil)
	require.Error(t, err)
	assert.True(t, types.IsCommandNotFound(err))
	assert.Equal(t, int64(0), cs.executeHits.Load())
}

func TestCallCommandValidationNoNetwork(t *testing.T) {
	cs := newCommandServer(t)
	client := cs.client()

	_, err := client.CallCommand(context.Background(), "web_search", map[string]any{})
	require.Error(t, err)
	assert.True(t, types.IsArgumentValidation(err))
	assert.Equal(t, int64(0), cs.executeHits.Load())

	_, err = client.CallCommand(context.Background(), "web_search", map[string]any{"query": 7})
	require.Error(t, err)
	assert.True(t, types.IsArgumentValidation(err))
	assert.Equal(t, int64(0), cs.executeHits.Load())
}

func TestCallCommandServerErrors(t *testing.T) {
	var status atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/commands" {
			w.Write([]byte(testCatalog))
			return
		}
		code := int(status.Load())
		w.WriteHeader(code)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	ctx := context.Background()

	// Catalog lists the command but the server has since dropped it.
	status.Store(http.StatusNotFound)
	_, err := client.CallCommand(ctx, "web_search", map[string]any{"query": "x"})
	require.Error(t, err)
	assert.True(t, types.IsCommandNotFound(err))

	status.Store(http.StatusInternalServerError)
	_, err = client.CallCommand(ctx, "web_search", map[string]any{"query": "x"})
	require.Error(t, err)
	assert.True(t, types.IsTransport(err))

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, http.StatusInternalServerError, typed.HTTPStatus)
	assert.Contains(t, typed.Message, "boom")
}

func TestCatalogHTTPErrorNotRetried(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"down"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	start := time.Now()
	_, err := client.ListCommands(context.Background())
	require.Error(t, err)

	assert.True(t, types.IsTransport(err))
	assert.Equal(t, int64(1), hits.Load(), "HTTP error statuses must not be retried")
	assert.Less(t, time.Since(start), time.Second)
}

func TestCatalogFailureNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, `{"error":"warming up"}`, http.StatusInternalServerError)
			return
		}
		w.Write([]byte(testCatalog))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	ctx := context.Background()

	_, err := client.ListCommands(ctx)
	require.Error(t, err)

	fail.Store(false)
	commands, err := client.ListCommands(ctx)
	require.NoError(t, err)
	assert.Len(t, commands, 2)
}

// flakyCatalogServer closes the first failures connections without a
// response, then serves the catalog normally.
func flakyCatalogServer(t *testing.T, failures int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= int64(failures) {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testCatalog))
	}))
	return srv, &hits
}

// stubSleep replaces the client's backoff wait and records each delay.
func stubSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestCatalogTransientErrorRetried(t *testing.T) {
	srv, hits := flakyCatalogServer(t, 2)
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	var delays []time.Duration
	client.sleep = stubSleep(&delays)

	commands, err := client.ListCommands(context.Background())
	require.NoError(t, err)
	assert.Len(t, commands, 2)
	assert.Equal(t, int64(3), hits.Load(), "dropped connections must be retried")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

func TestCatalogRetriesExhausted(t *testing.T) {
	srv, hits := flakyCatalogServer(t, 1000)
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	var delays []time.Duration
	client.sleep = stubSleep(&delays)

	_, err := client.ListCommands(context.Background())
	require.Error(t, err)

	// The final attempt's error comes back as-is: still the transport
	// error built around the connection failure, retryable flag intact.
	assert.Equal(t, int64(3), hits.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
	assert.True(t, types.IsTransport(err))
	assert.True(t, types.IsRetryable(err))
	assert.True(t, isTransientNetErr(errors.Unwrap(err)))
}

func TestCatalogDuplicateNameRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[
			{"name": "web_search", "description": "a", "parameters": {"properties": {}}},
			{"name": "web_search", "description": "b", "parameters": {"properties": {}}}
		]`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	_, err := client.ListCommands(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsProtocol(err))
	assert.Contains(t, err.Error(), "duplicated")
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoffDelay(1))
	assert.Equal(t, 4*time.Second, backoffDelay(2))
	assert.Equal(t, 8*time.Second, backoffDelay(3))
	assert.Equal(t, 10*time.Second, backoffDelay(4))
}

func TestIsTransientNetErr(t *testing.T) {
	assert.True(t, isTransientNetErr(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.True(t, isTransientNetErr(io.ErrUnexpectedEOF))
	assert.True(t, isTransientNetErr(timeoutErr{}))
	assert.False(t, isTransientNetErr(errors.New("parse failure")))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
