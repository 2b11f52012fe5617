package engine

import (
	"runtime"
	"time"

	"github.com/standardbeagle/scenebridge/internal/protocol"
)

func (e *Engine) projectInfo() (protocol.Result, error) {
	p := e.host.Project()
	data := map[string]any{
		"project_path":   p.Path,
		"project_name":   p.Name,
		"main_scene":     p.MainScene,
		"version":        p.Version,
		"settings":       p.Settings,
		"has_marker":     p.HasMarker,
		"current_scene":  e.host.ScenePath(),
		"editor_version": e.opts.Version,
	}
	return protocol.Success("project "+p.Name, data), nil
}

func (e *Engine) version() (protocol.Result, error) {
	data := map[string]any{
		"editor_version":   e.opts.Version,
		"plugin_version":   ProtocolVersion,
		"protocol_version": ProtocolVersion,
		"go_version":       runtime.Version(),
		"platform":         runtime.GOOS + "/" + runtime.GOARCH,
	}
	return protocol.Success("scenebridge "+e.opts.Version, data), nil
}

func (e *Engine) ping() (protocol.Result, error) {
	return protocol.Success("pong", map[string]any{"time": time.Now().UTC().Format(time.RFC3339Nano)}), nil
}
