package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/scenebridge/internal/protocol"
)

// fakeServer greets, then answers every command with its action as the
// message. "notify" additionally pushes a file_changed event first.
func fakeServer(t *testing.T, greeting any) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.WriteJSON(greeting); err != nil {
			return
		}
		for {
			var cmd map[string]any
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			if cmd["action"] == "notify" {
				_ = conn.WriteJSON(protocol.FileChanged{Type: protocol.TypeFileChanged, Path: "res://a.lua", Op: "create"})
			}
			res := protocol.Success(cmd["action"].(string), map[string]any{"echo": cmd["value"]})
			res.ID = cmd["id"]
			_ = conn.WriteJSON(res)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func projectInfo() protocol.Greeting {
	return protocol.Greeting{
		Type: protocol.TypeProjectInfo,
		Data: protocol.ProjectData{ProjectName: "demo", IsReady: true},
	}
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, WithURL(url), WithTimeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDialReadsGreeting(t *testing.T) {
	c := dial(t, fakeServer(t, projectInfo()))
	assert.Equal(t, "demo", c.Greeting().Data.ProjectName)
	assert.True(t, c.Greeting().Data.IsReady)
}

func TestDialRejectsOtherFirstMessage(t *testing.T) {
	url := fakeServer(t, map[string]any{"type": "command_response", "status": "success"})
	_, err := Dial(context.Background(), WithURL(url), WithTimeout(5*time.Second))
	assert.ErrorIs(t, err, ErrNoGreeting)
}

func TestSendMatchesByID(t *testing.T) {
	c := dial(t, fakeServer(t, projectInfo()))
	ctx := context.Background()

	for i, action := range []string{"ping", "get_version", "ping"} {
		res, err := c.Send(ctx, action, map[string]any{"value": i, "id": "ignored"})
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.Equal(t, action, res.Message)
		data := res.Data.(map[string]any)
		assert.EqualValues(t, i, data["echo"])
		assert.NotEqual(t, "ignored", res.ID)
	}
}

func TestChanges(t *testing.T) {
	c := dial(t, fakeServer(t, projectInfo()))
	_, err := c.Send(context.Background(), "notify", nil)
	require.NoError(t, err)

	select {
	case fc := <-c.Changes():
		assert.Equal(t, "res://a.lua", fc.Path)
		assert.Equal(t, "create", fc.Op)
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}
}

func TestSendAfterClose(t *testing.T) {
	c := dial(t, fakeServer(t, projectInfo()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Send(context.Background(), "ping", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}
