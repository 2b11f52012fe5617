package server

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/scenebridge/internal/client"
	"github.com/standardbeagle/scenebridge/internal/editor"
	"github.com/standardbeagle/scenebridge/internal/engine"
	"github.com/standardbeagle/scenebridge/internal/metrics"
	"github.com/standardbeagle/scenebridge/internal/project"
	"github.com/standardbeagle/scenebridge/internal/protocol"
	"github.com/standardbeagle/scenebridge/internal/render"
	"github.com/standardbeagle/scenebridge/internal/wsconn"
)

type harness struct {
	srv     *Server
	up      *wsconn.Upgrader
	metrics *metrics.Metrics
	changes chan project.Change
	url     string
}

// build wires a server without starting the scheduler.
func build(t *testing.T) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	proj, err := project.Detect(t.TempDir())
	require.NoError(t, err)

	m := metrics.New()
	up, err := wsconn.Listen(context.Background(), "127.0.0.1:0", wsconn.Config{
		OnTransition: m.Transition,
		OnHandshake:  m.Handshake,
	}, log)
	require.NoError(t, err)

	ed := editor.New(editor.Options{
		Project:  proj,
		Viewport: render.Viewport{Width: 32, Height: 24},
		Logger:   log,
	})
	eng := engine.New(ed, engine.Options{Logger: log, Observe: m.Command})
	changes := make(chan project.Change, 8)
	srv := New(Options{
		Upgrader: up,
		Editor:   ed,
		Engine:   eng,
		Changes:  changes,
		Metrics:  m,
		TickRate: 200,
		Logger:   log,
	})

	return &harness{srv: srv, up: up, metrics: m, changes: changes, url: "ws://" + up.Addr().String() + "/"}
}

func start(t *testing.T) *harness {
	t.Helper()
	h := build(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return h
}

func (h *harness) dial(t *testing.T) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, client.WithURL(h.url), client.WithTimeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGreetingOnConnect(t *testing.T) {
	h := start(t)
	c := h.dial(t)

	g := c.Greeting()
	assert.Equal(t, protocol.TypeProjectInfo, g.Type)
	assert.True(t, g.Data.IsReady)
	assert.NotEmpty(t, g.Data.ProjectPath)
}

func TestCommandRoundTrip(t *testing.T) {
	h := start(t)
	c := h.dial(t)
	ctx := context.Background()

	res, err := c.Send(ctx, "ping", nil)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "c1", res.ID)

	res, err = c.Send(ctx, "create_scene", map[string]any{"root_type": "Node2D", "root_name": "Main"})
	require.NoError(t, err)
	require.True(t, res.OK(), res.Message)

	res, err = c.Send(ctx, "create_node", map[string]any{"type": "Sprite2D", "name": "Hero"})
	require.NoError(t, err)
	require.True(t, res.OK(), res.Message)
	data := res.Data.(map[string]any)
	assert.Equal(t, "Hero", data["name"])

	assert.Contains(t, scrape(t, h.metrics), `scenebridge_commands_total{action="create_node",status="success"} 1`)
}

func TestInvalidFrameKeepsConnection(t *testing.T) {
	h := start(t)
	c := h.dial(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.SendRaw(ctx, []byte(`not json`))
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusError, res.Status)
	assert.Equal(t, protocol.KindProtocol, res.Code)

	res, err = c.Send(ctx, "get_version", nil)
	require.NoError(t, err)
	assert.True(t, res.OK())
}

func TestSuspendedCommandCompletes(t *testing.T) {
	h := start(t)
	c := h.dial(t)
	ctx := context.Background()

	res, err := c.Send(ctx, "create_scene", map[string]any{"root_type": "Node2D", "root_name": "Main"})
	require.NoError(t, err)
	require.True(t, res.OK(), res.Message)

	res, err = c.Send(ctx, "get_visual_snapshot", nil)
	require.NoError(t, err)
	require.True(t, res.OK(), res.Message)
	data := res.Data.(map[string]any)
	assert.EqualValues(t, 32, data["width"])
}

func TestReplyToClosedConnectionIsDropped(t *testing.T) {
	h := build(t)
	defer h.up.Close()
	h.srv.replyTo(12345)(protocol.Success("late", nil))
	assert.Contains(t, scrape(t, h.metrics), "scenebridge_replies_dropped_total 1")
}

func TestFileChangesBroadcast(t *testing.T) {
	h := start(t)
	a := h.dial(t)
	b := h.dial(t)

	h.changes <- project.Change{Path: "res://scenes/level.scene", Op: "write"}

	for _, c := range []*client.Client{a, b} {
		select {
		case fc := <-c.Changes():
			assert.Equal(t, protocol.TypeFileChanged, fc.Type)
			assert.Equal(t, "res://scenes/level.scene", fc.Path)
			assert.Equal(t, "write", fc.Op)
		case <-time.After(5 * time.Second):
			t.Fatal("no file_changed notification")
		}
	}
}

func TestConnectionMetrics(t *testing.T) {
	h := start(t)
	h.dial(t)

	assert.Eventually(t, func() bool {
		return h.up.Counts()[wsconn.StateOpen] == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return strings.Contains(scrape(t, h.metrics), `scenebridge_handshakes_total{outcome="complete"} 1`)
	}, 5*time.Second, 10*time.Millisecond)
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	b, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(b)
}
