// Package workflow orchestrates the supervisor-driven agent loop: a
// routing oracle decides which worker handles the next step, workers
// run with the shared remote tools, and the loop ends on FINISH or the
// iteration cap. A run never fails with an error; every failure mode is
// folded into the textual result so callers always get an answer.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/meetkosiso/Multi-Agent-Assistant/agent"
	"github.com/meetkosiso/Multi-Agent-Assistant/llm"
	"github.com/meetkosiso/Multi-Agent-Assistant/types"
)

// Decision is the supervisor's routing verdict.
type Decision string

const (
	DecideResearcher Decision = "researcher"
	DecideDeveloper  Decision = "developer"
	DecideTester     Decision = "tester"
	DecideFinish     Decision = "finish"
)

// MaxIterations caps the combined number of routing and agent steps in
// one run.
const MaxIterations = 20

// resultTruncateLen bounds how much of an agent result lands in the
// step trace.
const resultTruncateLen = 100

// noResultText is returned when a run finishes without any agent having
// produced a result.
const noResultText = "Workflow completed without result"

// RunState accumulates one run: the original query, the ordered step
// trace, the current routing target, and the latest agent result.
type RunState struct {
	Query   string   `json:"query"`
	Steps   []string `json:"steps"`
	Current Decision `json:"current_task"`
	Result  string   `json:"result"`
}

// Outcome is the final product of a run. Err is the failure text when
// the run aborted (supervisor failure or cancellation) instead of
// completing; Result always carries something readable either way.
type Outcome struct {
	Result string   `json:"result"`
	Steps  []string `json:"steps"`
	Err    string   `json:"error,omitempty"`
}

// Worker is one dispatchable agent. agent.Agent satisfies this.
type Worker interface {
	Name() string
	Act(ctx context.Context, task string) (string, error)
}

// Metrics receives workflow observations. internal/metrics.Collector
// implements it.
type Metrics interface {
	ObserveRun(status string, seconds float64)
	IncRoutingFallback()
	IncAgentStep(agentName string)
}

// Graph wires the supervisor to its workers.
type Graph struct {
	provider llm.Provider
	workers  map[Decision]Worker
	logger   *zap.Logger
	metrics  Metrics

	maxIterations int
}

// Option adjusts graph construction.
type Option func(*Graph)

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(g *Graph) { g.metrics = m }
}

// WithMaxIterations overrides the step cap. Intended for tests.
func WithMaxIterations(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxIterations = n
		}
	}
}

// NewGraph builds a supervisor graph over the three worker roles. The
// dispatch table is validated up front so a miswired graph fails at
// construction, not mid-run.
func NewGraph(provider llm.Provider, researcher, developer, tester Worker, logger *zap.Logger, opts ...Option) (*Graph, error) {
	if provider == nil {
		return nil, fmt.Errorf("workflow: provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	workers := map[Decision]Worker{
		DecideResearcher: researcher,
		DecideDeveloper:  developer,
		DecideTester:     tester,
	}
	for decision, w := range workers {
		if w == nil {
			return nil, fmt.Errorf("workflow: missing worker for %q", decision)
		}
	}

	g := &Graph{
		provider:      provider,
		workers:       workers,
		logger:        logger.With(zap.String("component", "workflow")),
		maxIterations: MaxIterations,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NewDefaultGraph assembles the standard three-agent graph sharing one
// provider and tool set.
func NewDefaultGraph(provider llm.Provider, tools []agent.Tool, logger *zap.Logger, opts ...Option) (*Graph, error) {
	return NewGraph(provider,
		agent.NewResearcher(provider, tools, logger),
		agent.NewDeveloper(provider, tools, logger),
		agent.NewTester(provider, tools, logger),
		logger, opts...)
}

// Run executes the supervisor loop for one query. It never returns an
// error: cancellation, provider failures, and agent failures all
// surface as text in the outcome, alongside the step trace gathered so
// far.
func (g *Graph) Run(ctx context.Context, query string) Outcome {
	start := time.Now()
	state := RunState{Query: query}

	g.logger.Info("starting workflow", zap.String("query", query))

	status := "completed"
	for {
		// Cancellation is honored between transitions, never mid-step.
		if err := ctx.Err(); err != nil {
			g.logger.Warn("workflow canceled", zap.Error(err))
			status = "canceled"
			state.Result = fmt.Sprintf("Error during workflow execution: %v", err)
			break
		}

		decision, fatal := g.superviseStep(ctx, &state)
		if fatal != nil {
			g.logger.Error("supervisor failed", zap.Error(fatal))
			status = "failed"
			state.Result = fmt.Sprintf("Error during workflow execution: %v", fatal)
			break
		}

		if decision == DecideFinish {
			g.logger.Info("workflow finished", zap.Int("steps", len(state.Steps)))
			break
		}

		if len(state.Steps) > g.maxIterations {
			g.logger.Warn("max iterations reached",
				zap.String("query", query),
				zap.Int("steps", len(state.Steps)))
			status = "max_iterations"
			break
		}

		if err := ctx.Err(); err != nil {
			g.logger.Warn("workflow canceled", zap.Error(err))
			status = "canceled"
			state.Result = fmt.Sprintf("Error during workflow execution: %v", err)
			break
		}

		g.agentStep(ctx, &state, decision)
	}

	if state.Result == "" {
		state.Result = noResultText
	}
	if g.metrics != nil {
		g.metrics.ObserveRun(status, time.Since(start).Seconds())
	}

	out := Outcome{Result: state.Result, Steps: state.Steps}
	if status == "failed" || status == "canceled" {
		out.Err = state.Result
	}
	return out
}

// superviseStep asks the routing oracle for the next decision and
// appends the routing step to the trace. A fatal (non-nil) return aborts
// the run; parse-level failures fall back to the researcher instead.
func (g *Graph) superviseStep(ctx context.Context, state *RunState) (Decision, error) {
	raw, err := g.routeOracle(ctx, state)
	if err != nil {
		if types.IsCode(err, types.ErrRoutingParse) {
			g.logger.Error("supervisor output unparseable", zap.Error(err))
			if g.metrics != nil {
				g.metrics.IncRoutingFallback()
			}
			state.Current = DecideResearcher
			state.Steps = append(state.Steps, "Fallback to researcher due to parsing error")
			return DecideResearcher, nil
		}
		return "", err
	}

	decision, matched := parseDecision(raw)
	if !matched {
		g.logger.Warn("supervisor output did not match known agent, falling back to researcher",
			zap.String("output", raw))
		if g.metrics != nil {
			g.metrics.IncRoutingFallback()
		}
	}

	state.Current = decision
	state.Steps = append(state.Steps, fmt.Sprintf("Routed to %s", decision))
	return decision, nil
}

// routeOracle performs the supervisor completion.
func (g *Graph) routeOracle(ctx context.Context, state *RunState) (string, error) {
	prompt := agent.SupervisorPrompt(strings.Join(state.Steps, "\n"), state.Query)
	resp, err := g.provider.Completion(ctx, &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("supervisor completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.FirstText()) == "" {
		return "", types.NewError(types.ErrRoutingParse, "supervisor returned no routing output")
	}
	return resp.FirstText(), nil
}

// parseDecision maps raw supervisor output to a decision by substring
// match, case-insensitive, in fixed priority order. Unmatched output
// falls back to the researcher.
func parseDecision(raw string) (Decision, bool) {
	out := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(out, string(DecideResearcher)):
		return DecideResearcher, true
	case strings.Contains(out, string(DecideDeveloper)):
		return DecideDeveloper, true
	case strings.Contains(out, string(DecideTester)):
		return DecideTester, true
	case strings.Contains(out, string(DecideFinish)):
		return DecideFinish, true
	default:
		return DecideResearcher, false
	}
}

// agentStep dispatches to the chosen worker. Worker failures are
// absorbed: the error text becomes both a trace entry and the current
// result, and the loop continues.
func (g *Graph) agentStep(ctx context.Context, state *RunState, decision Decision) {
	w := g.workers[decision]
	if g.metrics != nil {
		g.metrics.IncAgentStep(w.Name())
	}

	result, err := w.Act(ctx, state.Query)
	if err != nil {
		g.logger.Error("agent step failed",
			zap.String("agent", w.Name()),
			zap.Error(err))
		msg := fmt.Sprintf("Error in %s: %v", w.Name(), err)
		state.Result = msg
		state.Steps = append(state.Steps, msg)
		return
	}

	state.Result = result
	state.Steps = append(state.Steps, fmt.Sprintf("%s result: %s", w.Name(), truncate(result, resultTruncateLen)))
}

// truncate shortens s to at most n characters, never splitting a
// multibyte rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
