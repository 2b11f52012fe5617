// Package tools exposes a running scenebridge server to MCP clients.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/scenebridge/internal/client"
	"github.com/standardbeagle/scenebridge/internal/protocol"
)

// Sender issues one command to a server.
type Sender interface {
	Send(ctx context.Context, action string, params map[string]any) (protocol.Result, error)
}

// SceneTools wraps a server connection for MCP tool handlers. The
// connection is opened on first use and reopened after it drops.
type SceneTools struct {
	url     string
	timeout time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	client *client.Client
}

// NewSceneTools creates a tools wrapper for the server at url.
func NewSceneTools(url string, timeout time.Duration, log *slog.Logger) *SceneTools {
	if log == nil {
		log = slog.Default()
	}
	return &SceneTools{url: url, timeout: timeout, log: log.With("component", "tools")}
}

// ensureConnected returns a live client, dialing if needed.
func (st *SceneTools) ensureConnected(ctx context.Context) (*client.Client, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.client != nil {
		return st.client, nil
	}
	c, err := client.Dial(ctx, client.WithURL(st.url), client.WithTimeout(st.timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to scenebridge at %s: %w", st.url, err)
	}
	st.log.Info("connected", "url", st.url, "project", c.Greeting().Data.ProjectName)
	st.client = c
	return c, nil
}

func (st *SceneTools) drop(c *client.Client) {
	st.mu.Lock()
	if st.client == c {
		st.client = nil
	}
	st.mu.Unlock()
	_ = c.Close()
}

// Send forwards one command, redialing once if the connection had dropped.
func (st *SceneTools) Send(ctx context.Context, action string, params map[string]any) (protocol.Result, error) {
	for attempt := 0; ; attempt++ {
		c, err := st.ensureConnected(ctx)
		if err != nil {
			return protocol.Result{}, err
		}
		res, err := c.Send(ctx, action, params)
		if errors.Is(err, client.ErrNotConnected) && attempt == 0 {
			st.drop(c)
			continue
		}
		return res, err
	}
}

// Close closes the server connection.
func (st *SceneTools) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.client == nil {
		return nil
	}
	err := st.client.Close()
	st.client = nil
	return err
}

// CommandInput defines input for the scene_command tool.
type CommandInput struct {
	Action string         `json:"action" jsonschema:"command name such as create_node or get_node_info"`
	Params map[string]any `json:"params,omitempty" jsonschema:"command parameters"`
}

// TreeInput defines input for the scene_tree tool.
type TreeInput struct {
	MaxDepth int `json:"max_depth,omitempty" jsonschema:"levels below the root to include; 0 means all"`
}

// SnapshotInput defines input for the snapshot tool.
type SnapshotInput struct {
	Action   string `json:"action" jsonschema:"one of baseline, compare, list, get, delete"`
	Name     string `json:"name,omitempty" jsonschema:"baseline name (baseline, get and delete actions)"`
	Baseline string `json:"baseline,omitempty" jsonschema:"baseline to compare against (compare action)"`
}

// CommandOutput mirrors a command response.
type CommandOutput struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// RegisterSceneTools adds the scene tools to server.
func RegisterSceneTools(server *mcp.Server, s Sender) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "scene_command",
		Description: `Send one command to the open scene.

Mutations are undoable in the editor. Errors are reported with a code
(validation_error, document_state_error, ...) and often a suggestion.

Examples:
  scene_command {action: "create_scene", params: {root_type: "Node2D", root_name: "Main"}}
  scene_command {action: "create_node", params: {type: "Sprite2D", name: "Hero", parent: "/"}}
  scene_command {action: "modify_node", params: {path: "Hero", properties: {position: {x: 10, y: 4}}}}
  scene_command {action: "undo"}`,
	}, commandHandler(s))

	mcp.AddTool(server, &mcp.Tool{
		Name: "scene_tree",
		Description: `Show the open scene as a tree of names and types.
Example: scene_tree {max_depth: 2}`,
	}, treeHandler(s))

	mcp.AddTool(server, &mcp.Tool{
		Name: "snapshot",
		Description: `Capture and compare rendered viewport baselines for visual regression testing.

Actions:
- baseline: Capture the viewport as a named baseline
- compare: Capture the viewport and diff it against a baseline
- list: List stored baselines
- get: Show one baseline's metadata and screenshot path
- delete: Remove a baseline

Examples:
  snapshot {action: "baseline", name: "title-screen"}
  snapshot {action: "compare", baseline: "title-screen"}`,
	}, snapshotHandler(s))
}

func commandHandler(s Sender) mcp.ToolHandlerFor[CommandInput, CommandOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CommandInput) (*mcp.CallToolResult, CommandOutput, error) {
		if input.Action == "" {
			return errorResult("Missing required parameter: action"), CommandOutput{}, nil
		}
		return forward(ctx, s, input.Action, input.Params)
	}
}

func treeHandler(s Sender) mcp.ToolHandlerFor[TreeInput, CommandOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TreeInput) (*mcp.CallToolResult, CommandOutput, error) {
		var params map[string]any
		if input.MaxDepth > 0 {
			params = map[string]any{"max_depth": input.MaxDepth}
		}
		return forward(ctx, s, string(protocol.ActionSceneTreeSimple), params)
	}
}

func snapshotHandler(s Sender) mcp.ToolHandlerFor[SnapshotInput, CommandOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SnapshotInput) (*mcp.CallToolResult, CommandOutput, error) {
		switch input.Action {
		case "baseline":
			if input.Name == "" {
				return errorResult("Missing required parameter: name"), CommandOutput{}, nil
			}
			return forward(ctx, s, string(protocol.ActionCaptureBaseline), map[string]any{"name": input.Name})
		case "compare":
			if input.Baseline == "" {
				return errorResult("Missing required parameter: baseline"), CommandOutput{}, nil
			}
			return forward(ctx, s, string(protocol.ActionCompareBaseline), map[string]any{"baseline": input.Baseline})
		case "list":
			return forward(ctx, s, string(protocol.ActionListBaselines), nil)
		case "get", "delete":
			if input.Name == "" {
				return errorResult("Missing required parameter: name"), CommandOutput{}, nil
			}
			action := protocol.ActionGetBaseline
			if input.Action == "delete" {
				action = protocol.ActionDeleteBaseline
			}
			return forward(ctx, s, string(action), map[string]any{"name": input.Name})
		default:
			return errorResult(fmt.Sprintf("Unknown action: %s. Valid actions: baseline, compare, list, get, delete", input.Action)), CommandOutput{}, nil
		}
	}
}

func forward(ctx context.Context, s Sender, action string, params map[string]any) (*mcp.CallToolResult, CommandOutput, error) {
	res, err := s.Send(ctx, action, params)
	if err != nil {
		return errorResult(err.Error()), CommandOutput{}, nil
	}
	out := CommandOutput{
		Success:    res.OK(),
		Message:    res.Message,
		Code:       string(res.Code),
		Suggestion: res.Suggestion,
		Data:       res.Data,
	}
	if !res.OK() {
		msg := fmt.Sprintf("%s: %s", res.Code, res.Message)
		if res.Suggestion != "" {
			msg += "\nSuggestion: " + res.Suggestion
		}
		return errorResult(msg), out, nil
	}
	return nil, out, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
