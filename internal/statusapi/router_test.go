package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/scenebridge/internal/editor"
	"github.com/standardbeagle/scenebridge/internal/metrics"
	"github.com/standardbeagle/scenebridge/internal/wsconn"
)

type fakeEditor struct{ st editor.Status }

func (f *fakeEditor) Status() editor.Status { return f.st }

type fakeConns map[wsconn.State]int

func (f fakeConns) Counts() map[wsconn.State]int { return f }

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRouter(st editor.Status) http.Handler {
	m := metrics.New()
	m.Command("ping", "success", time.Millisecond)
	return NewRouter(Options{
		Editor:  &fakeEditor{st: st},
		Conns:   fakeConns{wsconn.StateOpen: 2, wsconn.StateHandshaking: 1},
		Metrics: m.Handler(),
		Version: "1.2.3",
		Now:     func() time.Time { return now },
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLive(t *testing.T) {
	rec := get(t, newRouter(editor.Status{}), "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReady(t *testing.T) {
	tests := []struct {
		name string
		st   editor.Status
		want int
	}{
		{"no frames yet", editor.Status{UpdatedAt: now}, http.StatusServiceUnavailable},
		{"ticking", editor.Status{Frame: 10, UpdatedAt: now.Add(-100 * time.Millisecond)}, http.StatusOK},
		{"stalled", editor.Status{Frame: 10, UpdatedAt: now.Add(-time.Minute)}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newRouter(tt.st), "/health/ready")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestStatus(t *testing.T) {
	st := editor.Status{SceneOpen: true, ScenePath: "res://main.scene", NodeCount: 4, Frame: 3, UpdatedAt: now}
	rec := get(t, newRouter(st), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1.2.3", resp.Version)
	assert.True(t, resp.Ready)
	assert.Equal(t, "res://main.scene", resp.Editor.ScenePath)
	assert.Equal(t, 4, resp.Editor.NodeCount)
	assert.Equal(t, map[string]int{"open": 2, "handshaking": 1}, resp.Connections)
}

func TestMetricsRoute(t *testing.T) {
	rec := get(t, newRouter(editor.Status{}), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scenebridge_commands_total{action="ping",status="success"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	rec := get(t, newRouter(editor.Status{}), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
