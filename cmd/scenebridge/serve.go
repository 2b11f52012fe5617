package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/scenebridge/internal/editor"
	"github.com/standardbeagle/scenebridge/internal/engine"
	"github.com/standardbeagle/scenebridge/internal/metrics"
	"github.com/standardbeagle/scenebridge/internal/project"
	"github.com/standardbeagle/scenebridge/internal/server"
	"github.com/standardbeagle/scenebridge/internal/snapshot"
	"github.com/standardbeagle/scenebridge/internal/statusapi"
	"github.com/standardbeagle/scenebridge/internal/wsconn"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scene server",
	Long: `Run the WebSocket scene server in the foreground.

The server hosts one document at a time for the project directory. Clients
connect to ws://host:port/ and receive a project_info greeting. Health,
status and Prometheus metrics are served on the status address.`,
	RunE: runServe,
}

var (
	serveRestore bool
	serveNoWatch bool
)

func init() {
	serveCmd.Flags().BoolVar(&serveRestore, "restore", false, "Reopen the most recently used scene")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Don't watch the project for file changes")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proj, err := project.Detect(cfg.Project.Dir)
	if err != nil {
		return fmt.Errorf("detect project: %w", err)
	}

	m := metrics.New()
	ucfg := cfg.Upgrader()
	ucfg.OnTransition = m.Transition
	ucfg.OnHandshake = m.Handshake
	up, err := wsconn.Listen(ctx, cfg.Addr(), ucfg, log)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}

	state := editor.NewStateManager(editor.StateConfig{Path: cfg.Project.StateFile, AutoLoad: true})
	defer func() {
		if err := state.Flush(); err != nil {
			log.Warn("save editor state", "err", err)
		}
	}()

	ed := editor.New(editor.Options{
		Project:       proj,
		Viewport:      cfg.Viewport(),
		HistoryLimit:  cfg.Project.HistoryLimit,
		DebugLines:    cfg.Project.DebugLines,
		ScriptTimeout: cfg.Project.ScriptTimeout,
		State:         state,
		Logger:        log,
	})
	if serveRestore && ed.RestoreLast() {
		log.Info("restoring last scene", "path", state.LastScene())
	}

	var snaps *snapshot.Manager
	if cfg.Snapshot.Dir != "" {
		snaps, err = snapshot.NewManager(cfg.Snapshot.Dir, cfg.Snapshot.DiffThreshold, proj.Path)
		if err != nil {
			up.Close()
			return fmt.Errorf("snapshot manager: %w", err)
		}
	}

	eng := engine.New(ed, engine.Options{
		Version:    appVersion,
		Snapshots:  snaps,
		CaptureDir: cfg.Project.CaptureDir,
		Logger:     log,
		Observe:    m.Command,
	})

	changes := make(chan project.Change, 256)
	srv := server.New(server.Options{
		Upgrader: up,
		Editor:   ed,
		Engine:   eng,
		Changes:  changes,
		Metrics:  m,
		TickRate: cfg.Server.TickRate,
		Logger:   log,
	})

	log.Info("scenebridge starting",
		"version", appVersion,
		"project", proj.Name,
		"path", proj.Path,
		"url", cfg.URL(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if !serveNoWatch {
		g.Go(func() error {
			// Notifications are best effort; a watcher failure leaves the
			// server running.
			if err := proj.Watch(gctx, changes, log); err != nil {
				log.Warn("project watcher stopped", "err", err)
			}
			return nil
		})
	}

	if cfg.Status.Addr != "" {
		router := statusapi.NewRouter(statusapi.Options{
			Editor:  ed,
			Conns:   up,
			Metrics: m.Handler(),
			Version: appVersion,
		})
		g.Go(func() error { return statusapi.Serve(gctx, cfg.Status.Addr, router, log) })
	}

	err = g.Wait()
	log.Info("scenebridge stopped")
	return err
}
