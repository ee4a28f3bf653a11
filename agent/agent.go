// Package agent implements the worker agents of the assistant: a
// prompt-templated tool loop over an llm.Provider. Each agent renders
// its role prompt, exposes the shared remote tools to the model, and
// iterates completion -> tool execution until the model answers in
// plain text.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/meetkosiso/Multi-Agent-Assistant/llm"
)

// Tool is a callable capability exposed to the model via native
// function calling. mcp.Tool satisfies this.
type Tool interface {
	Name() string
	Description() string
	Schema() llm.ToolSchema
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// PromptFunc renders a role's task prompt.
type PromptFunc func(task string) string

// defaultMaxToolRounds bounds the completion/tool loop inside one Act
// call, independent of the workflow-level iteration cap.
const defaultMaxToolRounds = 10

// Agent is one worker role: a prompt template plus the shared tool set.
type Agent struct {
	name     string
	prompt   PromptFunc
	provider llm.Provider
	tools    []Tool
	schemas  []llm.ToolSchema
	byName   map[string]Tool
	logger   *zap.Logger

	maxToolRounds int
}

// New creates a worker agent.
func New(name string, prompt PromptFunc, provider llm.Provider, tools []Tool, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}

	schemas := make([]llm.ToolSchema, 0, len(tools))
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		schemas = append(schemas, tool.Schema())
		byName[tool.Name()] = tool
	}

	return &Agent{
		name:          name,
		prompt:        prompt,
		provider:      provider,
		tools:         tools,
		schemas:       schemas,
		byName:        byName,
		logger:        logger.With(zap.String("agent", name)),
		maxToolRounds: defaultMaxToolRounds,
	}
}

// NewResearcher creates the information-gathering agent.
func NewResearcher(provider llm.Provider, tools []Tool, logger *zap.Logger) *Agent {
	return New("researcher", ResearcherPrompt, provider, tools, logger)
}

// NewDeveloper creates the code-writing agent.
func NewDeveloper(provider llm.Provider, tools []Tool, logger *zap.Logger) *Agent {
	return New("developer", DeveloperPrompt, provider, tools, logger)
}

// NewTester creates the validation agent.
func NewTester(provider llm.Provider, tools []Tool, logger *zap.Logger) *Agent {
	return New("tester", TesterPrompt, provider, tools, logger)
}

func (a *Agent) Name() string { return a.name }

// Act runs the agent on one task: completion with the tool set bound,
// executing requested tools and feeding results back until the model
// produces a text answer. Provider and tool failures are returned to
// the caller, which decides how to absorb them into the run.
func (a *Agent) Act(ctx context.Context, task string) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleUser, Content: a.prompt(task)},
	}

	for round := 1; round <= a.maxToolRounds; round++ {
		resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
			Messages: messages,
			Tools:    a.schemas,
		})
		if err != nil {
			return "", fmt.Errorf("agent %s: completion failed: %w", a.name, err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("agent %s: empty completion response", a.name)
		}

		choice := resp.Choices[0]
		if len(choice.Message.ToolCalls) == 0 {
			a.logger.Debug("task completed",
				zap.Int("rounds", round),
				zap.String("finish_reason", choice.FinishReason))
			return choice.Message.Content, nil
		}

		messages = append(messages, choice.Message)
		for _, call := range choice.Message.ToolCalls {
			result, err := a.callTool(ctx, call)
			if err != nil {
				return "", err
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Name:       call.Name,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}

	return "", fmt.Errorf("agent %s: tool loop exceeded %d rounds", a.name, a.maxToolRounds)
}

func (a *Agent) callTool(ctx context.Context, call llm.ToolCall) (string, error) {
	tool, ok := a.byName[call.Name]
	if !ok {
		return "", fmt.Errorf("agent %s: model requested unknown tool %q", a.name, call.Name)
	}

	a.logger.Info("executing tool", zap.String("tool", call.Name))
	result, err := tool.Call(ctx, call.Arguments)
	if err != nil {
		return "", fmt.Errorf("agent %s: tool %s failed: %w", a.name, call.Name, err)
	}
	return result, nil
}
