package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/scenebridge/internal/protocol"
)

type call struct {
	action string
	params map[string]any
}

type fakeSender struct {
	calls []call
	reply protocol.Result
}

func (f *fakeSender) Send(_ context.Context, action string, params map[string]any) (protocol.Result, error) {
	f.calls = append(f.calls, call{action, params})
	return f.reply, nil
}

func connect(t *testing.T, s Sender) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "scenebridge", Version: "test"}, nil)
	RegisterSceneTools(server, s)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	cl := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	cs, err := cl.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func text(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func TestListTools(t *testing.T) {
	cs := connect(t, &fakeSender{})
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"scene_command", "scene_tree", "snapshot"}, names)
}

func TestSceneCommandForwards(t *testing.T) {
	f := &fakeSender{reply: protocol.Success("created node", map[string]any{"path": "Hero"})}
	cs := connect(t, f)

	res := callTool(t, cs, "scene_command", map[string]any{
		"action": "create_node",
		"params": map[string]any{"type": "Sprite2D", "name": "Hero"},
	})
	assert.False(t, res.IsError)
	require.Len(t, f.calls, 1)
	assert.Equal(t, "create_node", f.calls[0].action)
	assert.Equal(t, "Sprite2D", f.calls[0].params["type"])

	out, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "created node", out["message"])
	assert.Contains(t, text(res), "Hero")
}

func TestSceneCommandError(t *testing.T) {
	fail := protocol.Failure(protocol.Errorf(protocol.KindDocumentState, "no document open").WithSuggestion("create or open a scene first"))
	cs := connect(t, &fakeSender{reply: fail})

	res := callTool(t, cs, "scene_command", map[string]any{"action": "delete_node", "params": map[string]any{"path": "X"}})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "document_state_error: no document open")
	assert.Contains(t, text(res), "create or open a scene first")
}

func TestSceneTree(t *testing.T) {
	f := &fakeSender{reply: protocol.Success("tree", map[string]any{"tree": map[string]any{"name": "Main"}})}
	cs := connect(t, f)

	callTool(t, cs, "scene_tree", map[string]any{"max_depth": 2})
	callTool(t, cs, "scene_tree", map[string]any{})
	require.Len(t, f.calls, 2)
	assert.Equal(t, string(protocol.ActionSceneTreeSimple), f.calls[0].action)
	assert.EqualValues(t, 2, f.calls[0].params["max_depth"])
	assert.Nil(t, f.calls[1].params)
}

func TestSnapshotActions(t *testing.T) {
	tests := []struct {
		args   map[string]any
		action protocol.Action
		isErr  bool
	}{
		{map[string]any{"action": "baseline", "name": "title"}, protocol.ActionCaptureBaseline, false},
		{map[string]any{"action": "compare", "baseline": "title"}, protocol.ActionCompareBaseline, false},
		{map[string]any{"action": "list"}, protocol.ActionListBaselines, false},
		{map[string]any{"action": "get", "name": "title"}, protocol.ActionGetBaseline, false},
		{map[string]any{"action": "delete", "name": "title"}, protocol.ActionDeleteBaseline, false},
		{map[string]any{"action": "baseline"}, "", true},
		{map[string]any{"action": "get"}, "", true},
		{map[string]any{"action": "delete"}, "", true},
		{map[string]any{"action": "purge"}, "", true},
	}
	for _, tt := range tests {
		f := &fakeSender{reply: protocol.Success("ok", nil)}
		cs := connect(t, f)
		res := callTool(t, cs, "snapshot", tt.args)
		assert.Equal(t, tt.isErr, res.IsError, tt.args)
		if tt.isErr {
			assert.Empty(t, f.calls)
			continue
		}
		require.Len(t, f.calls, 1)
		assert.Equal(t, string(tt.action), f.calls[0].action)
		if name, ok := tt.args["name"]; ok {
			assert.Equal(t, name, f.calls[0].params["name"])
		}
	}
}

// flakyServer greets, answers one command, then drops the connection.
func flakyServer(t *testing.T, conns *atomic.Int32) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)
		_ = conn.WriteJSON(protocol.Greeting{Type: protocol.TypeProjectInfo, Data: protocol.ProjectData{IsReady: true}})
		var cmd map[string]any
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		res := protocol.Success("pong", nil)
		res.ID = cmd["id"]
		_ = conn.WriteJSON(res)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSceneToolsRedials(t *testing.T) {
	var conns atomic.Int32
	st := NewSceneTools(flakyServer(t, &conns), 5*time.Second, nil)
	defer st.Close()
	ctx := context.Background()

	res, err := st.Send(ctx, "ping", nil)
	require.NoError(t, err)
	assert.True(t, res.OK())

	res, err = st.Send(ctx, "ping", nil)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.EqualValues(t, 2, conns.Load())
}

func TestSceneToolsDialFailure(t *testing.T) {
	st := NewSceneTools("ws://127.0.0.1:1/", time.Second, nil)
	_, err := st.Send(context.Background(), "ping", nil)
	assert.Error(t, err)
	assert.NoError(t, st.Close())
}
