package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
)

// ConfigFile is the file name looked up in the working directory and in the
// user config dir.
const ConfigFile = "scenebridge.kdl"

// KDLConfig represents the KDL configuration structure.
type KDLConfig struct {
	Server   KDLServer   `kdl:"server"`
	Project  KDLProject  `kdl:"project"`
	Snapshot KDLSnapshot `kdl:"snapshot"`
	Status   *KDLStatus  `kdl:"status"`
	Log      KDLLog      `kdl:"log"`
}

// KDLServer holds listener settings. Durations are in milliseconds.
type KDLServer struct {
	Host     string `kdl:"host"`
	Port     int    `kdl:"port"`
	TickRate int    `kdl:"tick-rate"`
	// HandshakeTimeout is prefilled with the default so an explicit 0 can
	// disable it.
	HandshakeTimeout int  `kdl:"handshake-timeout"`
	MaxMessageSize   int  `kdl:"max-message-size"`
	MaxClients       int  `kdl:"max-clients"`
	WriteTimeout     int  `kdl:"write-timeout"`
	ReusePort        bool `kdl:"reuse-port"`
}

// KDLProject holds project and editor settings.
type KDLProject struct {
	Dir           string `kdl:"dir"`
	Viewport      []int  `kdl:"viewport"`
	HistoryLimit  int    `kdl:"history-limit"`
	DebugLines    int    `kdl:"debug-lines"`
	ScriptTimeout int    `kdl:"script-timeout"`
	StateFile     string `kdl:"state-file"`
	CaptureDir    string `kdl:"capture-dir"`
}

// KDLSnapshot holds baseline settings.
type KDLSnapshot struct {
	Dir           string  `kdl:"dir"`
	DiffThreshold float64 `kdl:"diff-threshold"`
}

// KDLStatus holds status server settings.
type KDLStatus struct {
	Addr    string `kdl:"addr"`
	Disable bool   `kdl:"disable"`
}

// KDLLog holds logging settings.
type KDLLog struct {
	Level  string `kdl:"level"`
	Format string `kdl:"format"`
}

// Load resolves the configuration: defaults, then the config file at path
// (or the first of ./scenebridge.kdl and the user config file when path is
// empty), then SCENEBRIDGE_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		var err error
		if cfg, err = LoadConfigFile(path); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if _, err := os.Stat(ConfigFile); err == nil {
		return ConfigFile
	}
	if p := GlobalConfigPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadConfigFile loads configuration from a specific file path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseKDLConfig(string(data))
}

// ParseKDLConfig parses KDL configuration data over the defaults.
func ParseKDLConfig(data string) (*Config, error) {
	def := DefaultConfig()
	var kdlCfg KDLConfig
	kdlCfg.Server.HandshakeTimeout = int(def.Server.HandshakeTimeout / time.Millisecond)
	kdlCfg.Snapshot.DiffThreshold = def.Snapshot.DiffThreshold
	if err := kdl.Unmarshal([]byte(data), &kdlCfg); err != nil {
		return nil, err
	}
	return kdlConfigToConfig(&kdlCfg), nil
}

func kdlConfigToConfig(k *KDLConfig) *Config {
	cfg := DefaultConfig()

	s := &cfg.Server
	if k.Server.Host != "" {
		s.Host = k.Server.Host
	}
	if k.Server.Port > 0 {
		s.Port = k.Server.Port
	}
	if k.Server.TickRate > 0 {
		s.TickRate = k.Server.TickRate
	}
	if k.Server.MaxMessageSize > 0 {
		s.MaxMessageSize = k.Server.MaxMessageSize
	}
	if k.Server.MaxClients > 0 {
		s.MaxClients = k.Server.MaxClients
	}
	if k.Server.WriteTimeout > 0 {
		s.WriteTimeout = millis(k.Server.WriteTimeout)
	}
	s.HandshakeTimeout = millis(k.Server.HandshakeTimeout)
	s.ReusePort = k.Server.ReusePort

	p := &cfg.Project
	if k.Project.Dir != "" {
		p.Dir = k.Project.Dir
	}
	if len(k.Project.Viewport) == 2 {
		p.ViewportWidth, p.ViewportHeight = k.Project.Viewport[0], k.Project.Viewport[1]
	}
	if k.Project.HistoryLimit > 0 {
		p.HistoryLimit = k.Project.HistoryLimit
	}
	if k.Project.DebugLines > 0 {
		p.DebugLines = k.Project.DebugLines
	}
	if k.Project.ScriptTimeout > 0 {
		p.ScriptTimeout = millis(k.Project.ScriptTimeout)
	}
	if k.Project.StateFile != "" {
		p.StateFile = k.Project.StateFile
	}
	if k.Project.CaptureDir != "" {
		p.CaptureDir = k.Project.CaptureDir
	}

	if k.Snapshot.Dir != "" {
		cfg.Snapshot.Dir = k.Snapshot.Dir
	}
	cfg.Snapshot.DiffThreshold = k.Snapshot.DiffThreshold

	if k.Status != nil {
		if k.Status.Addr != "" {
			cfg.Status.Addr = k.Status.Addr
		}
		if k.Status.Disable {
			cfg.Status.Addr = ""
		}
	}

	if k.Log.Level != "" {
		cfg.Log.Level = strings.ToLower(k.Log.Level)
	}
	if k.Log.Format != "" {
		cfg.Log.Format = strings.ToLower(k.Log.Format)
	}
	return cfg
}

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// GlobalConfigPath returns the path to the user config file.
func GlobalConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "scenebridge", ConfigFile)
}

// WriteDefaultConfig writes a default config file with documentation.
func WriteDefaultConfig(path string) error {
	defaultKDL := `// scenebridge configuration

server {
    host "127.0.0.1"
    port 9001
    // Scheduler frequency in Hz
    tick-rate 60
    // Milliseconds; 0 disables the timeout
    handshake-timeout 10000
    max-message-size 4194304
    // 0 = unlimited
    max-clients 0
}

project {
    dir "."
    viewport 640 480
    history-limit 100
}

snapshot {
    // Baselines are disabled unless a directory is set
    // dir ".scenebridge/snapshots"
    diff-threshold 0.01
}

status {
    addr "127.0.0.1:9002"
}

log {
    level "info"
    format "text"
}
`
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.TrimSpace(defaultKDL)+"\n"), 0644)
}
