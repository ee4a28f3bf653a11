package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectorExposesMetrics(t *testing.T) {
	c := NewCollector("assistant", zap.NewNop())

	c.RecordHTTPRequest("POST", "/api/v1/assist", 200, 120*time.Millisecond)
	c.ObserveRun("completed", 1.5)
	c.IncRoutingFallback()
	c.IncAgentStep("researcher")
	c.RecordCommandCall("web_search", "ok", 300*time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `assistant_http_requests_total{method="POST",path="/api/v1/assist",status="2xx"} 1`)
	assert.Contains(t, body, `assistant_workflow_runs_total{status="completed"} 1`)
	assert.Contains(t, body, `assistant_routing_fallbacks_total 1`)
	assert.Contains(t, body, `assistant_agent_steps_total{agent="researcher"} 1`)
	assert.Contains(t, body, `assistant_command_calls_total{command="web_search",status="ok"} 1`)
}

func TestIndependentCollectors(t *testing.T) {
	// Separate registries: constructing two must not panic on
	// duplicate registration.
	a := NewCollector("assistant", zap.NewNop())
	b := NewCollector("assistant", zap.NewNop())
	a.IncRoutingFallback()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.NotContains(t, rec.Body.String(), "assistant_routing_fallbacks_total 1")
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(301))
	assert.Equal(t, "4xx", statusCode(422))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(42))
}
