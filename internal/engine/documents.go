package engine

import (
	"context"
	"errors"
	"sort"

	"github.com/standardbeagle/scenebridge/internal/editor"
	"github.com/standardbeagle/scenebridge/internal/project"
	"github.com/standardbeagle/scenebridge/internal/protocol"
	"github.com/standardbeagle/scenebridge/internal/scene"
)

func (e *Engine) createScene(c protocol.CreateScene) (protocol.Result, error) {
	root, err := e.host.NewScene(c.RootType, c.RootName, c.Path)
	if err != nil {
		return protocol.Result{}, documentError(err)
	}
	data := map[string]any{
		"scene_path": e.host.ScenePath(),
		"root":       root.Name(),
		"root_type":  root.TypeName(),
		"saved":      e.host.ScenePath() != "",
	}
	return protocol.Success("created scene "+root.Name(), data), nil
}

func (e *Engine) openScene(c protocol.OpenScene, finish func(protocol.Result)) (protocol.Result, error) {
	err := e.host.OpenScene(c.Path, func(root *scene.Node, err error) {
		e.resume(c.Action(), finish, func() (protocol.Result, error) {
			if err != nil {
				return protocol.Result{}, documentError(err)
			}
			data := map[string]any{
				"scene_path": e.host.ScenePath(),
				"root":       root.Name(),
				"root_type":  root.TypeName(),
				"node_count": len(root.Subtree()),
			}
			return protocol.Success("opened "+e.host.ScenePath(), data), nil
		})
	})
	if err != nil {
		return protocol.Result{}, documentError(err)
	}
	return protocol.Result{}, errSuspended
}

func (e *Engine) saveScene(c protocol.SaveCurrentScene) (protocol.Result, error) {
	if _, err := e.document(); err != nil {
		return protocol.Result{}, err
	}
	saved, skipped, err := e.host.SaveScene(c.Path)
	if err != nil {
		return protocol.Result{}, documentError(err)
	}
	if skipped == nil {
		skipped = []string{}
	}
	data := map[string]any{"scene_path": saved, "skipped_nodes": skipped}
	return protocol.Success("saved "+saved, data), nil
}

func (e *Engine) createResource(c protocol.CreateResource) (protocol.Result, error) {
	if t, ok := scene.LookupType(c.Type); !ok || !t.Resource || t.Abstract {
		return protocol.Result{}, invalid("not a resource type: %s", c.Type).
			WithSuggestion("use get_class_info to check type names")
	}
	res, unknown, err := scene.NewResource(c.Type, c.Properties)
	if err != nil {
		return protocol.Result{}, invalid("%v", err)
	}
	sort.Strings(unknown)
	var warnings []string
	for _, name := range unknown {
		warnings = append(warnings, "unknown property: "+name)
	}
	saved, err := e.host.SaveResource(c.Path, res)
	if err != nil {
		return protocol.Result{}, documentError(err)
	}
	data := map[string]any{"resource_path": saved, "type": c.Type}
	withWarnings(data, warnings)
	return protocol.Success("created "+c.Type+" at "+saved, data), nil
}

func (e *Engine) selectNodes(c protocol.SelectNodes) (protocol.Result, error) {
	root, err := e.document()
	if err != nil {
		return protocol.Result{}, err
	}
	nodes := make([]*scene.Node, 0, len(c.Paths))
	for _, p := range c.Paths {
		_, n, err := e.resolve(p)
		if err != nil {
			return protocol.Result{}, err
		}
		nodes = append(nodes, n)
	}
	e.host.Select(nodes)

	selected := paths(root, nodes)
	if len(nodes) == 0 {
		return protocol.Success("selection cleared", map[string]any{"selected": selected}), nil
	}
	return protocol.Success("selected nodes", map[string]any{"selected": selected}), nil
}

func (e *Engine) play(ctx context.Context, c protocol.Play) (protocol.Result, error) {
	pb, err := e.host.Play(ctx, c.Mode, c.Scene)
	if err != nil {
		return protocol.Result{}, documentError(err)
	}
	return protocol.Success("playing "+pb.Scene, pb), nil
}

func (e *Engine) stopPlaying() (protocol.Result, error) {
	if !e.host.Stop() {
		return protocol.Success("nothing is playing", map[string]any{"stopped": false}), nil
	}
	return protocol.Success("stopped", map[string]any{"stopped": true}), nil
}

// documentError classifies errors returned by document and file operations.
func documentError(err error) error {
	var pe *protocol.Error
	switch {
	case errors.As(err, &pe):
		return pe
	case errors.Is(err, editor.ErrNoDocument):
		return errNoDocument()
	case errors.Is(err, editor.ErrFileNotFound):
		return conflict("%v", err).WithSuggestion("check the path; scene paths are relative to the project or use res://")
	case errors.Is(err, editor.ErrNoMainScene):
		return conflict("%v", err).WithSuggestion("set main-scene in project.kdl or use play mode custom")
	case errors.Is(err, project.ErrOutsideProject):
		return invalid("%v", err)
	case errors.Is(err, scene.ErrUnknownType), errors.Is(err, scene.ErrNotInstantiable),
		errors.Is(err, scene.ErrInvalidName), errors.Is(err, scene.ErrInvalidValue):
		return invalid("%v", err)
	}
	return protocol.HostError(err)
}

func paths(root *scene.Node, nodes []*scene.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, scene.PathFrom(root, n))
	}
	return out
}
