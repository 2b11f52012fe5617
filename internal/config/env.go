package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	// Load .env from the working directory before flags and files are read.
	_ "github.com/joho/godotenv/autoload"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "SCENEBRIDGE_"

// LoadEnvFile loads additional variables from path without overriding
// variables already set.
func LoadEnvFile(path string) error {
	return godotenv.Load(path)
}

// ApplyEnv overrides cfg from SCENEBRIDGE_* variables. Durations accept Go
// syntax ("250ms") or plain milliseconds.
func ApplyEnv(cfg *Config) error {
	e := envReader{}
	e.str("HOST", &cfg.Server.Host)
	e.int("PORT", &cfg.Server.Port)
	e.int("TICK_RATE", &cfg.Server.TickRate)
	e.duration("HANDSHAKE_TIMEOUT", &cfg.Server.HandshakeTimeout)
	e.int("MAX_MESSAGE_SIZE", &cfg.Server.MaxMessageSize)
	e.int("MAX_CLIENTS", &cfg.Server.MaxClients)
	e.duration("WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	e.bool("REUSE_PORT", &cfg.Server.ReusePort)

	e.str("PROJECT_DIR", &cfg.Project.Dir)
	e.int("VIEWPORT_WIDTH", &cfg.Project.ViewportWidth)
	e.int("VIEWPORT_HEIGHT", &cfg.Project.ViewportHeight)
	e.str("STATE_FILE", &cfg.Project.StateFile)
	e.str("CAPTURE_DIR", &cfg.Project.CaptureDir)

	e.str("SNAPSHOT_DIR", &cfg.Snapshot.Dir)
	e.float("DIFF_THRESHOLD", &cfg.Snapshot.DiffThreshold)

	e.str("STATUS_ADDR", &cfg.Status.Addr)

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	return e.err
}

// envReader records the first parse failure.
type envReader struct {
	err error
}

func (e *envReader) lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || e.err != nil {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(name, v string, err error) {
	e.err = fmt.Errorf("%s%s=%q: %w", EnvPrefix, name, v, err)
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e *envReader) int(name string, dst *int) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = n
}

func (e *envReader) float(name string, dst *float64) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = f
}

func (e *envReader) bool(name string, dst *bool) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = millis(n)
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = d
}
