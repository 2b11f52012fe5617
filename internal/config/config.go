// Package config holds scenebridge server configuration.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/standardbeagle/scenebridge/internal/render"
	"github.com/standardbeagle/scenebridge/internal/wsconn"
)

// Config holds the complete server configuration.
type Config struct {
	Server   ServerConfig
	Project  ProjectConfig
	Snapshot SnapshotConfig
	Status   StatusConfig
	Log      LogConfig
}

// ServerConfig controls the WebSocket listener and the scheduler.
type ServerConfig struct {
	Host string
	Port int
	// TickRate is the scheduler frequency in Hz.
	TickRate int
	// HandshakeTimeout fails slow handshakes. Zero disables the timeout.
	HandshakeTimeout time.Duration
	MaxMessageSize   int
	// MaxClients limits live connections; zero means unlimited.
	MaxClients   int
	WriteTimeout time.Duration
	ReusePort    bool
}

// ProjectConfig locates the project and sizes the editor.
type ProjectConfig struct {
	Dir            string
	ViewportWidth  int
	ViewportHeight int
	HistoryLimit   int
	DebugLines     int
	ScriptTimeout  time.Duration
	// StateFile persists recent scenes. Empty uses the XDG state dir.
	StateFile string
	// CaptureDir, when set, receives a PNG for every screenshot.
	CaptureDir string
}

// SnapshotConfig controls visual baselines.
type SnapshotConfig struct {
	// Dir stores baselines. Empty disables the baseline commands.
	Dir           string
	DiffThreshold float64
}

// StatusConfig controls the HTTP status server.
type StatusConfig struct {
	// Addr is the listen address. Empty disables the status server.
	Addr string
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             9001,
			TickRate:         60,
			HandshakeTimeout: wsconn.DefaultHandshakeTimeout,
			MaxMessageSize:   wsconn.DefaultMaxMessageSize,
			WriteTimeout:     wsconn.DefaultWriteTimeout,
		},
		Project: ProjectConfig{
			Dir:            ".",
			ViewportWidth:  640,
			ViewportHeight: 480,
			HistoryLimit:   100,
			DebugLines:     1000,
			ScriptTimeout:  2 * time.Second,
		},
		Snapshot: SnapshotConfig{
			DiffThreshold: 0.01,
		},
		Status: StatusConfig{
			Addr: "127.0.0.1:9002",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Project),
		validation.Field(&c.Snapshot),
		validation.Field(&c.Log),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&s.TickRate, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&s.HandshakeTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.MaxMessageSize, validation.Required, validation.Min(1024)),
		validation.Field(&s.MaxClients, validation.Min(0)),
		validation.Field(&s.WriteTimeout, validation.Min(time.Duration(0))),
	)
}

func (p ProjectConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Dir, validation.Required),
		validation.Field(&p.ViewportWidth, validation.Required, validation.Min(1), validation.Max(8192)),
		validation.Field(&p.ViewportHeight, validation.Required, validation.Min(1), validation.Max(8192)),
		validation.Field(&p.HistoryLimit, validation.Min(0)),
		validation.Field(&p.DebugLines, validation.Min(0)),
	)
}

func (s SnapshotConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.DiffThreshold, validation.Min(0.0), validation.Max(1.0)),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("text", "json")),
	)
}

// Addr is the WebSocket listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// URL is the address clients dial.
func (c *Config) URL() string {
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("ws://%s/", net.JoinHostPort(host, strconv.Itoa(c.Server.Port)))
}

// Upgrader converts the server settings to a listener config. A zero
// handshake timeout here means disabled, which the upgrader spells as a
// negative duration.
func (c *Config) Upgrader() wsconn.Config {
	hs := c.Server.HandshakeTimeout
	if hs == 0 {
		hs = -1
	}
	return wsconn.Config{
		HandshakeTimeout: hs,
		MaxMessageSize:   c.Server.MaxMessageSize,
		MaxConns:         c.Server.MaxClients,
		WriteTimeout:     c.Server.WriteTimeout,
		ReusePort:        c.Server.ReusePort,
	}
}

// Viewport returns the editor viewport size.
func (c *Config) Viewport() render.Viewport {
	return render.Viewport{Width: c.Project.ViewportWidth, Height: c.Project.ViewportHeight}
}
