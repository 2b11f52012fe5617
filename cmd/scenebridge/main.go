package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/scenebridge/internal/config"
	"github.com/standardbeagle/scenebridge/internal/logging"
)

const appName = "scenebridge"

// appVersion is overridden at build time with -ldflags "-X main.appVersion=...".
var appVersion = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Scene editing server for AI assistants",
	Long: `scenebridge hosts a scene document and lets WebSocket clients build and
inspect it with JSON commands:
  - Undoable node, group and script edits
  - Scene, resource and playback management
  - Queries, introspection and viewport captures
  - Visual regression baselines
  - MCP bridge for AI coding assistants`,
	Version:       appVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to scenebridge.kdl (default: ./scenebridge.kdl, then the user config dir)")
	rootCmd.PersistentFlags().String("addr", "", "WebSocket host:port, overrides the config file")
	rootCmd.PersistentFlags().String("env-file", "", "Load extra SCENEBRIDGE_* variables from this file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s\n", appName, appVersion))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration from file, environment and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	flags := cmd.Root().PersistentFlags()
	if envFile, _ := flags.GetString("env-file"); envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return nil, nil, fmt.Errorf("load env file: %w", err)
		}
	}

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if addr, _ := flags.GetString("addr"); addr != "" {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --addr: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --addr port: %w", err)
		}
		cfg.Server.Host, cfg.Server.Port = host, p
	}
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
