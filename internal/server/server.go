// Package server runs the scheduler: one goroutine that ticks the connection
// upgrader, dispatches complete messages to the engine, fans out project file
// changes and advances the editor. The document is only touched here.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/standardbeagle/scenebridge/internal/editor"
	"github.com/standardbeagle/scenebridge/internal/engine"
	"github.com/standardbeagle/scenebridge/internal/metrics"
	"github.com/standardbeagle/scenebridge/internal/project"
	"github.com/standardbeagle/scenebridge/internal/protocol"
	"github.com/standardbeagle/scenebridge/internal/wsconn"
)

// DefaultTickRate is the scheduler frequency in Hz.
const DefaultTickRate = 60

// Options configures a Server.
type Options struct {
	Upgrader *wsconn.Upgrader
	Editor   *editor.Editor
	Engine   *engine.Engine
	// Changes, when set, is drained every tick and broadcast to open
	// connections.
	Changes <-chan project.Change
	Metrics *metrics.Metrics
	// TickRate in Hz; zero means DefaultTickRate.
	TickRate int
	Logger   *slog.Logger
}

// Server is the scheduler.
type Server struct {
	up      *wsconn.Upgrader
	ed      *editor.Editor
	eng     *engine.Engine
	changes <-chan project.Change
	metrics *metrics.Metrics
	period  time.Duration
	log     *slog.Logger
}

// New creates a server from opts.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultTickRate
	}
	return &Server{
		up:      opts.Upgrader,
		ed:      opts.Editor,
		eng:     opts.Engine,
		changes: opts.Changes,
		metrics: opts.Metrics,
		period:  time.Second / time.Duration(opts.TickRate),
		log:     opts.Logger.With("component", "server"),
	}
}

// Run ticks until ctx is cancelled, then closes the upgrader.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "addr", s.up.Addr().String(), "period", s.period)
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return s.up.Close()
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick runs one scheduler step.
func (s *Server) Tick(ctx context.Context, now time.Time) {
	s.up.Tick(wsconn.Handler{
		Connected: s.connected,
		Message: func(c *wsconn.Conn, payload []byte) {
			s.eng.Handle(ctx, payload, s.replyTo(c.ID()))
		},
		Disconnected: func(c *wsconn.Conn) {
			s.log.Debug("client disconnected", "conn", c.ID())
		},
	})
	s.broadcastChanges()
	s.ed.Advance(now)

	if s.metrics != nil {
		s.metrics.Connections(s.up.Counts())
		st := s.ed.Status()
		s.metrics.Editor(st.Frame, st.NodeCount)
	}
}

func (s *Server) connected(c *wsconn.Conn) {
	s.log.Info("client connected", "conn", c.ID(), "remote", c.RemoteAddr().String())
	if err := c.WriteText(protocol.Encode(s.eng.Greeting())); err != nil {
		s.log.Debug("greeting failed", "conn", c.ID(), "err", err)
	}
}

// replyTo returns a reply func bound to a connection id. Suspended commands
// reply on a later tick, so the connection is looked up again at send time.
func (s *Server) replyTo(id int64) engine.Reply {
	return func(res protocol.Result) {
		c, ok := s.up.Lookup(id)
		if !ok {
			s.log.Debug("dropping reply for closed connection", "conn", id, "status", res.Status)
			if s.metrics != nil {
				s.metrics.DroppedReply()
			}
			return
		}
		if err := c.WriteText(protocol.Encode(res)); err != nil {
			s.log.Debug("reply failed", "conn", id, "err", err)
		}
	}
}

// broadcastChanges forwards pending file changes. Delivery is best effort.
func (s *Server) broadcastChanges() {
	if s.changes == nil {
		return
	}
	for {
		select {
		case ch := <-s.changes:
			msg := protocol.Encode(protocol.FileChanged{Type: protocol.TypeFileChanged, Path: ch.Path, Op: ch.Op})
			for _, c := range s.up.Open() {
				_ = c.WriteText(msg)
			}
		default:
			return
		}
	}
}
