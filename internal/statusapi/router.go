// Package statusapi serves health, status and metrics over HTTP alongside the
// WebSocket endpoint.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/standardbeagle/scenebridge/internal/editor"
	"github.com/standardbeagle/scenebridge/internal/wsconn"
)

// DefaultStaleAfter is how long the editor may go without a frame before
// the server reports not ready.
const DefaultStaleAfter = 2 * time.Second

// StatusSource reports editor state. Implementations must be safe to call
// from HTTP goroutines.
type StatusSource interface {
	Status() editor.Status
}

// ConnCounter reports live connections per state.
type ConnCounter interface {
	Counts() map[wsconn.State]int
}

// Options configures the router.
type Options struct {
	Editor  StatusSource
	Conns   ConnCounter
	Metrics http.Handler
	Version string
	// StaleAfter; zero means DefaultStaleAfter.
	StaleAfter time.Duration
	Now        func() time.Time
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Version     string         `json:"version"`
	Ready       bool           `json:"ready"`
	Editor      editor.Status  `json:"editor"`
	Connections map[string]int `json:"connections"`
}

type handler struct {
	opts Options
}

// NewRouter mounts the status routes.
func NewRouter(opts Options) chi.Router {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &handler{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", h.live)
	r.Get("/health/ready", h.ready)
	r.Get("/api/status", h.status)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return r
}

func (h *handler) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) ready(w http.ResponseWriter, _ *http.Request) {
	if !h.isReady(h.opts.Editor.Status()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	st := h.opts.Editor.Status()
	resp := StatusResponse{
		Version:     h.opts.Version,
		Ready:       h.isReady(st),
		Editor:      st,
		Connections: map[string]int{},
	}
	if h.opts.Conns != nil {
		for state, n := range h.opts.Conns.Counts() {
			resp.Connections[state.String()] = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// isReady reports whether the scheduler has ticked recently.
func (h *handler) isReady(st editor.Status) bool {
	return st.Frame > 0 && h.opts.Now().Sub(st.UpdatedAt) <= h.opts.StaleAfter
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// Serve runs an HTTP server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("status server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("status server: %w", err)
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("status server shutdown", "err", err)
	}
	return <-errc
}
