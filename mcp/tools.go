package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meetkosiso/Multi-Agent-Assistant/llm"
	"github.com/meetkosiso/Multi-Agent-Assistant/types"
)

// Tool is one catalog command bound to its client, callable by an
// agent. Arguments are validated against the command's schema inside
// CallCommand, so a malformed model-produced call fails locally.
type Tool struct {
	client *Client
	cmd    Command
}

func (t *Tool) Name() string { return t.cmd.Name }

func (t *Tool) Description() string { return t.cmd.Description }

// Schema projects the command into an llm tool declaration.
func (t *Tool) Schema() llm.ToolSchema {
	return llm.ToolSchema{
		Name:        t.cmd.Name,
		Description: t.cmd.Description,
		Parameters:  t.cmd.Parameters.ToJSONSchema(),
	}
}

// Call decodes the model-produced argument payload, executes the
// command, and renders the result as text for the conversation.
func (t *Tool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	argMap := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argMap); err != nil {
			return "", types.NewError(types.ErrArgumentValidation,
				fmt.Sprintf("tool %q: arguments are not a JSON object", t.cmd.Name)).WithCause(err)
		}
	}

	result, err := t.client.CallCommand(ctx, t.cmd.Name, argMap)
	if err != nil {
		return "", err
	}
	return renderResult(result), nil
}

// DeriveTools fetches the client's catalog and wraps every command as a
// Tool. The set is stable for the client's lifetime since the catalog
// is fetched once.
func DeriveTools(ctx context.Context, client *Client) ([]*Tool, error) {
	commands, err := client.ListCommands(ctx)
	if err != nil {
		return nil, err
	}

	tools := make([]*Tool, 0, len(commands))
	for _, cmd := range commands {
		tools = append(tools, &Tool{client: client, cmd: cmd})
	}
	return tools, nil
}

func renderResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
