package engine

import (
	"path"
	"strings"

	"github.com/standardbeagle/scenebridge/internal/protocol"
	"github.com/standardbeagle/scenebridge/internal/scene"
)

func (e *Engine) searchByType(c protocol.SearchByType) (protocol.Result, error) {
	if _, ok := scene.LookupType(c.Type); !ok {
		return protocol.Result{}, invalid("unknown node type: %s", c.Type).
			WithSuggestion("use get_class_info to check type names")
	}
	return e.search("type "+c.Type, c.SearchOptions, func(n *scene.Node) bool {
		return n.Type().Is(c.Type)
	})
}

func (e *Engine) searchByName(c protocol.SearchByName) (protocol.Result, error) {
	needle := strings.ToLower(c.Name)
	return e.search("name "+c.Name, c.SearchOptions, func(n *scene.Node) bool {
		if c.Exact {
			return n.Name() == c.Name
		}
		return strings.Contains(strings.ToLower(n.Name()), needle)
	})
}

func (e *Engine) searchByGroup(c protocol.SearchByGroup) (protocol.Result, error) {
	return e.search("group "+c.Group, c.SearchOptions, func(n *scene.Node) bool {
		return n.InGroup(c.Group)
	})
}

func (e *Engine) searchByScript(c protocol.SearchByScript) (protocol.Result, error) {
	want := resPath(c.ScriptPath)
	return e.search("script "+want, c.SearchOptions, func(n *scene.Node) bool {
		b := n.Behavior()
		return b != nil && resPath(b.Path) == want
	})
}

// search walks the open document in tree order. Matching never mutates the
// document; select and focus only touch editor state.
func (e *Engine) search(what string, opts protocol.SearchOptions, match func(*scene.Node) bool) (protocol.Result, error) {
	root, err := e.document()
	if err != nil {
		return protocol.Result{}, err
	}
	var found []*scene.Node
	root.Walk(func(n *scene.Node) bool {
		if match(n) {
			found = append(found, n)
		}
		return true
	})

	matches := paths(root, found)
	data := map[string]any{"matches": matches, "count": len(matches)}
	if opts.Select && len(found) > 0 {
		e.host.Select(found)
		data["selected"] = matches
	}
	if opts.Focus && len(found) > 0 {
		e.host.Focus(found[0])
		data["focused"] = matches[0]
	}
	if len(found) == 0 {
		return protocol.Success("no nodes match "+what, data), nil
	}
	return protocol.Success("found nodes matching "+what, data), nil
}

func (e *Engine) sceneDetailed(c protocol.SceneDetailed) (protocol.Result, error) {
	root, err := e.document()
	if err != nil {
		return protocol.Result{}, err
	}
	data := map[string]any{
		"scene_path": e.host.ScenePath(),
		"node_count": len(root.Subtree()),
		"root":       describe(root, root, c.MaxDepth, 0, true),
	}
	return protocol.Success("scene "+root.Name(), data), nil
}

func (e *Engine) sceneTreeSimple(c protocol.SceneTreeSimple) (protocol.Result, error) {
	root, err := e.document()
	if err != nil {
		return protocol.Result{}, err
	}
	data := map[string]any{
		"scene_path": e.host.ScenePath(),
		"tree":       describe(root, root, c.MaxDepth, 0, false),
	}
	return protocol.Success("scene "+root.Name(), data), nil
}

func (e *Engine) nodeInfo(c protocol.NodeInfo) (protocol.Result, error) {
	root, n, err := e.resolve(c.Path)
	if err != nil {
		return protocol.Result{}, err
	}
	info := describe(root, n, 1, 0, true)
	info["absolute_path"] = scene.AbsolutePath(root, n)
	info["ancestry"] = n.Type().Ancestry()
	info["explicit"] = n.ExplicitProperties()
	if p := n.Parent(); p != nil {
		info["parent"] = scene.PathFrom(root, p)
		info["index"] = n.Index()
	}
	if o := n.Owner(); o != nil {
		info["owner"] = scene.PathFrom(root, o)
	}
	return protocol.Success(n.Name()+" ("+n.TypeName()+")", info), nil
}

func (e *Engine) classInfo(c protocol.ClassInfo) (protocol.Result, error) {
	t, ok := scene.LookupType(c.Type)
	if !ok {
		return protocol.Result{}, invalid("unknown type: %s", c.Type).
			WithSuggestion("known types: " + strings.Join(scene.TypeNames(), ", "))
	}
	var inherits []string
	for _, name := range scene.TypeNames() {
		if sub, _ := scene.LookupType(name); sub != t && sub.Is(t.Name) {
			inherits = append(inherits, name)
		}
	}
	data := map[string]any{
		"type":        t.Name,
		"base":        t.Base,
		"description": t.Description,
		"space":       t.Space.String(),
		"resource":    t.Resource,
		"abstract":    t.Abstract,
		"ancestry":    t.Ancestry(),
		"properties":  t.Properties(),
		"subtypes":    inherits,
	}
	return protocol.Success("type "+t.Name, data), nil
}

func (e *Engine) inspectSceneFile(c protocol.InspectSceneFile) (protocol.Result, error) {
	root, resolved, err := e.host.LoadScene(c.Path)
	if err != nil {
		return protocol.Result{}, documentError(err)
	}
	data := map[string]any{
		"scene_path": resolved,
		"node_count": len(root.Subtree()),
		"root":       describe(root, root, 0, 0, true),
	}
	return protocol.Success("scene file "+resolved, data), nil
}

func (e *Engine) debugOutput(c protocol.DebugOutput) (protocol.Result, error) {
	lines := e.host.DebugOutput(c.Limit)
	messages := make([]string, 0, len(lines))
	for _, l := range lines {
		switch l.Level {
		case "error":
			messages = append(messages, "ERROR: "+l.Message)
		case "warn":
			messages = append(messages, "WARNING: "+l.Message)
		default:
			messages = append(messages, l.Message)
		}
	}
	data := map[string]any{"messages": messages, "lines": lines, "count": len(lines)}
	return protocol.Success("debug output", data), nil
}

func (e *Engine) performance() (protocol.Result, error) {
	return protocol.Success("performance metrics", e.host.Stats()), nil
}

// describe renders n as a map. maxDepth 0 is unlimited; full adds property
// values, groups and behavior.
func describe(root, n *scene.Node, maxDepth, depth int, full bool) map[string]any {
	out := map[string]any{
		"name": n.Name(),
		"type": n.TypeName(),
		"path": scene.PathFrom(root, n),
	}
	if full {
		out["id"] = n.ID().String()
		out["properties"] = n.Properties()
		out["groups"] = n.Groups()
		if b := n.Behavior(); b != nil {
			out["script"] = map[string]any{"path": b.Path, "methods": b.Methods}
		}
	}
	out["child_count"] = n.ChildCount()
	if maxDepth > 0 && depth+1 >= maxDepth {
		return out
	}
	children := make([]map[string]any, 0, n.ChildCount())
	for _, ch := range n.Children() {
		children = append(children, describe(root, ch, maxDepth, depth+1, full))
	}
	out["children"] = children
	return out
}

// resPath normalizes a project path to its res:// form for comparison.
func resPath(p string) string {
	p = strings.TrimPrefix(strings.TrimSpace(p), "res://")
	return "res://" + strings.TrimPrefix(path.Clean("/"+p), "/")
}
