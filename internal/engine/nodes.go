package engine

import (
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/standardbeagle/scenebridge/internal/behavior"
	"github.com/standardbeagle/scenebridge/internal/journal"
	"github.com/standardbeagle/scenebridge/internal/protocol"
	"github.com/standardbeagle/scenebridge/internal/scene"
)

func (e *Engine) createNode(c protocol.CreateNode) (protocol.Result, error) {
	root, err := e.document()
	if err != nil {
		return protocol.Result{}, err
	}
	parent := root
	if c.Parent != "" && !scene.IsRootMarker(c.Parent) {
		if _, parent, err = e.resolve(c.Parent); err != nil {
			return protocol.Result{}, err
		}
	}

	n, err := e.host.NewNode(c.Type, c.Name)
	if err != nil {
		return protocol.Result{}, nodeError(err)
	}
	warnings, err := applyProperties(n, c.Properties)
	if err != nil {
		return protocol.Result{}, err
	}
	if name := scene.UniqueName(parent, c.Name); name != c.Name {
		must(n.Rename(name))
	}

	tx, err := e.begin("Create " + n.Name())
	if err != nil {
		return protocol.Result{}, err
	}
	defer tx.Discard()
	tx.Step("add "+n.Name(),
		func() {
			must(parent.AddChild(n, -1))
			n.SetOwner(root)
		},
		func() {
			_, err := parent.RemoveChild(n)
			must(err)
			n.SetOwner(nil)
		})
	if err := e.commit(tx); err != nil {
		return protocol.Result{}, err
	}

	data := map[string]any{
		"path": scene.PathFrom(root, n),
		"id":   n.ID().String(),
		"name": n.Name(),
		"type": n.TypeName(),
	}
	withWarnings(data, warnings)
	return protocol.Success("created "+n.TypeName()+" "+n.Name(), data), nil
}

func (e *Engine) deleteNode(c protocol.DeleteNode) (protocol.Result, error) {
	root, n, err := e.resolve(c.Path)
	if err != nil {
		return protocol.Result{}, err
	}
	if n == root {
		return protocol.Result{}, conflict("cannot delete the scene root").
			WithSuggestion("create a new scene with create_scene instead")
	}
	parent := n.Parent()
	if parent == nil {
		return protocol.Result{}, conflict("node has no parent: %s", c.Path)
	}
	removed := scene.PathFrom(root, n)
	index := n.Index()
	owner := n.Owner()

	tx, err := e.begin("Delete " + n.Name())
	if err != nil {
		return protocol.Result{}, err
	}
	defer tx.Discard()
	tx.Step("remove "+n.Name(),
		func() {
			_, err := parent.RemoveChild(n)
			must(err)
		},
		func() {
			must(parent.AddChild(n, index))
			n.SetOwner(owner)
		})
	if err := e.commit(tx); err != nil {
		return protocol.Result{}, err
	}
	e.dropSelection(n)

	return protocol.Success("deleted "+removed, map[string]any{"path": removed}), nil
}

func (e *Engine) modifyNode(c protocol.ModifyNode) (protocol.Result, error) {
	root, n, err := e.resolve(c.Path)
	if err != nil {
		return protocol.Result{}, err
	}

	type change struct {
		name     string
		value    any
		old      any
		explicit bool
	}
	var (
		changes  []change
		warnings []string
	)
	for _, name := range sortedKeys(c.Properties) {
		def, ok := n.Type().Property(name)
		if !ok {
			warnings = append(warnings, "unknown property: "+name)
			continue
		}
		v, err := scene.Coerce(def.Kind, c.Properties[name])
		if err != nil {
			return protocol.Result{}, invalid("invalid value for %s: expected %s", name, def.Kind)
		}
		old, explicit := n.Explicit(name)
		changes = append(changes, change{name: name, value: v, old: old, explicit: explicit})
	}

	at := scene.PathFrom(root, n)
	data := map[string]any{"path": at}
	withWarnings(data, warnings)
	if len(changes) == 0 {
		data["modified"] = []string{}
		return protocol.Success("no declared properties to modify", data), nil
	}

	tx, err := e.begin("Modify " + n.Name())
	if err != nil {
		return protocol.Result{}, err
	}
	defer tx.Discard()

	modified := make([]string, 0, len(changes))
	oldValues := make(map[string]any, len(changes))
	for _, ch := range changes {
		effective, _ := n.Get(ch.name)
		oldValues[ch.name] = effective
		modified = append(modified, ch.name)
		tx.Step("set "+ch.name,
			func() { n.SetRaw(ch.name, ch.value, true) },
			func() { n.SetRaw(ch.name, ch.old, ch.explicit) })
	}
	if err := e.commit(tx); err != nil {
		return protocol.Result{}, err
	}

	data["modified"] = modified
	data["old_values"] = oldValues
	if len(changes) == 1 {
		data["old_value"] = oldValues[changes[0].name]
	}
	return protocol.Success("modified "+at, data), nil
}

func (e *Engine) attachScript(c protocol.AttachScript) (protocol.Result, error) {
	root, n, err := e.resolve(c.Path)
	if err != nil {
		return protocol.Result{}, err
	}
	scriptPath := c.ScriptPath
	if scriptPath == "" {
		scriptPath = "res://scripts/" + strings.ToLower(n.Name()) + ".lua"
	}

	script, err := e.host.Compile(scriptPath, c.Source)
	if err != nil {
		var ce *behavior.CompileError
		if errors.As(err, &ce) {
			return protocol.Result{}, (&protocol.Error{Kind: protocol.KindHostOperation, Message: ce.Detail, Err: err}).
				WithSuggestion("fix the script and attach it again")
		}
		return protocol.Result{}, protocol.HostError(err)
	}

	prev := n.Behavior()
	next := &scene.Behavior{Path: scriptPath, Source: c.Source, Methods: script.Methods}

	tx, err := e.begin("Attach script to " + n.Name())
	if err != nil {
		return protocol.Result{}, err
	}
	defer tx.Discard()
	tx.Step("set behavior",
		func() { n.SetBehavior(next) },
		func() { n.SetBehavior(prev) })
	if err := e.commit(tx); err != nil {
		return protocol.Result{}, err
	}

	data := map[string]any{
		"path":        scene.PathFrom(root, n),
		"script_path": scriptPath,
		"methods":     script.Methods,
		"replaced":    prev != nil,
	}
	return protocol.Success("attached "+scriptPath, data), nil
}

func (e *Engine) duplicateNode(c protocol.DuplicateNode) (protocol.Result, error) {
	root, n, err := e.resolve(c.Path)
	if err != nil {
		return protocol.Result{}, err
	}
	if n == root {
		return protocol.Result{}, conflict("cannot duplicate the scene root")
	}
	parent := n.Parent()
	if parent == nil {
		return protocol.Result{}, conflict("node has no parent: %s", c.Path)
	}
	base := n.Name()
	if c.NewName != "" {
		if err := scene.ValidateName(c.NewName); err != nil {
			return protocol.Result{}, invalid("invalid node name: %s", c.NewName)
		}
		base = c.NewName
	}

	cp := scene.Duplicate(n)
	must(cp.Rename(scene.UniqueName(parent, base)))
	index := n.Index() + 1

	tx, err := e.begin("Duplicate " + n.Name())
	if err != nil {
		return protocol.Result{}, err
	}
	defer tx.Discard()
	tx.Step("add "+cp.Name(),
		func() { must(parent.AddChild(cp, index)) },
		func() {
			_, err := parent.RemoveChild(cp)
			must(err)
		})
	reown(tx, cp, root)
	if err := e.commit(tx); err != nil {
		return protocol.Result{}, err
	}

	data := map[string]any{
		"path":          scene.PathFrom(root, cp),
		"original_path": scene.PathFrom(root, n),
		"new_name":      cp.Name(),
		"id":            cp.ID().String(),
	}
	return protocol.Success("duplicated "+n.Name()+" as "+cp.Name(), data), nil
}

func (e *Engine) reparentNode(c protocol.ReparentNode) (protocol.Result, error) {
	if within(c.NewParentPath, c.Path) {
		return protocol.Result{}, conflict("cannot move %s under itself or one of its descendants", c.Path)
	}
	root, n, err := e.resolve(c.Path)
	if err != nil {
		return protocol.Result{}, err
	}
	_, target, err := e.resolve(c.NewParentPath)
	if err != nil {
		return protocol.Result{}, err
	}
	if n == root {
		return protocol.Result{}, conflict("cannot reparent the scene root")
	}
	if target == n || n.IsAncestorOf(target) {
		return protocol.Result{}, conflict("cannot move %s under itself or one of its descendants", n.Name())
	}
	oldParent := n.Parent()
	if oldParent == nil {
		return protocol.Result{}, conflict("node has no parent: %s", c.Path)
	}
	index := -1
	if c.Index != nil {
		index = *c.Index
	}
	oldPath := scene.PathFrom(root, n)
	oldIndex := n.Index()

	if target == oldParent {
		tx, err := e.begin("Move " + n.Name())
		if err != nil {
			return protocol.Result{}, err
		}
		defer tx.Discard()
		tx.Step("move "+n.Name(),
			func() { must(oldParent.MoveChild(n, index)) },
			func() { must(oldParent.MoveChild(n, oldIndex)) })
		if err := e.commit(tx); err != nil {
			return protocol.Result{}, err
		}
		data := map[string]any{"path": oldPath, "old_path": oldPath, "index": n.Index()}
		return protocol.Success("moved "+oldPath, data), nil
	}

	if target.Child(n.Name()) != nil {
		return protocol.Result{}, conflict("sibling already exists: %s", n.Name()).
			WithSuggestion("rename the node before moving it")
	}

	keep := n.Type().Space != scene.SpaceNone
	if c.KeepGlobalTransform != nil {
		keep = *c.KeepGlobalTransform
	}
	var restore []propState
	var apply map[string]any
	if keep {
		apply = keptTransform(n, target)
		for name := range apply {
			old, explicit := n.Explicit(name)
			restore = append(restore, propState{name: name, value: old, explicit: explicit})
		}
	}

	tx, err := e.begin("Reparent " + n.Name())
	if err != nil {
		return protocol.Result{}, err
	}
	defer tx.Discard()
	tx.Step("reparent "+n.Name(),
		func() {
			_, err := oldParent.RemoveChild(n)
			must(err)
			must(target.AddChild(n, index))
		},
		func() {
			_, err := target.RemoveChild(n)
			must(err)
			must(oldParent.AddChild(n, oldIndex))
		})
	if len(apply) > 0 {
		tx.Step("keep global transform",
			func() {
				for name, v := range apply {
					n.SetRaw(name, v, true)
				}
			},
			func() {
				for _, p := range restore {
					n.SetRaw(p.name, p.value, p.explicit)
				}
			})
	}
	reown(tx, n, root)
	if err := e.commit(tx); err != nil {
		return protocol.Result{}, err
	}

	data := map[string]any{
		"path":                  scene.PathFrom(root, n),
		"old_path":              oldPath,
		"new_parent_path":       scene.PathFrom(root, target),
		"index":                 n.Index(),
		"keep_global_transform": keep,
	}
	return protocol.Success("moved "+oldPath+" to "+scene.PathFrom(root, target), data), nil
}

func (e *Engine) renameNode(c protocol.RenameNode) (protocol.Result, error) {
	root, n, err := e.resolve(c.Path)
	if err != nil {
		return protocol.Result{}, err
	}
	if n == root {
		return protocol.Result{}, conflict("cannot rename the scene root with rename_node")
	}
	if err := scene.ValidateName(c.NewName); err != nil {
		return protocol.Result{}, invalid("invalid node name: %s", c.NewName)
	}
	parent := n.Parent()
	if parent == nil {
		return protocol.Result{}, conflict("node has no parent: %s", c.Path)
	}
	if parent.Child(c.NewName) != nil {
		return protocol.Result{}, conflict("sibling already exists: %s", c.NewName).
			WithSuggestion("choose a name not used by another child of " + parent.Name())
	}
	oldName := n.Name()
	oldPath := scene.PathFrom(root, n)

	tx, err := e.begin("Rename " + oldName)
	if err != nil {
		return protocol.Result{}, err
	}
	defer tx.Discard()
	newName := c.NewName
	tx.Step("rename",
		func() { must(n.Rename(newName)) },
		func() { must(n.Rename(oldName)) })
	if err := e.commit(tx); err != nil {
		return protocol.Result{}, err
	}

	data := map[string]any{
		"path":     scene.PathFrom(root, n),
		"old_path": oldPath,
		"old_name": oldName,
		"new_name": newName,
	}
	return protocol.Success("renamed "+oldName+" to "+newName, data), nil
}

func (e *Engine) addToGroup(c protocol.AddToGroup) (protocol.Result, error) {
	return e.setGroup(c.Path, c.Group, true)
}

func (e *Engine) removeFromGroup(c protocol.RemoveFromGroup) (protocol.Result, error) {
	return e.setGroup(c.Path, c.Group, false)
}

func (e *Engine) setGroup(at, group string, member bool) (protocol.Result, error) {
	root, n, err := e.resolve(at)
	if err != nil {
		return protocol.Result{}, err
	}
	data := map[string]any{
		"path":   scene.PathFrom(root, n),
		"group":  group,
		"groups": n.Groups(),
	}
	if n.InGroup(group) == member {
		data["changed"] = false
		if member {
			return protocol.Success(n.Name()+" is already in group "+group, data), nil
		}
		return protocol.Success(n.Name()+" is not in group "+group, data), nil
	}

	add := func() { n.AddGroup(group) }
	remove := func() { n.RemoveGroup(group) }
	name, msg := "Add "+n.Name()+" to group "+group, "added "+n.Name()+" to "+group
	if !member {
		add, remove = remove, add
		name, msg = "Remove "+n.Name()+" from group "+group, "removed "+n.Name()+" from "+group
	}

	tx, err := e.begin(name)
	if err != nil {
		return protocol.Result{}, err
	}
	defer tx.Discard()
	tx.Step("group "+group, add, remove)
	if err := e.commit(tx); err != nil {
		return protocol.Result{}, err
	}

	data["changed"] = true
	data["groups"] = n.Groups()
	return protocol.Success(msg, data), nil
}

func (e *Engine) undo() (protocol.Result, error) {
	if _, err := e.document(); err != nil {
		return protocol.Result{}, err
	}
	name, err := e.host.Undo()
	if err != nil {
		return protocol.Result{}, historyError(err)
	}
	return protocol.Success("undid "+name, map[string]any{"action": name}), nil
}

func (e *Engine) redo() (protocol.Result, error) {
	if _, err := e.document(); err != nil {
		return protocol.Result{}, err
	}
	name, err := e.host.Redo()
	if err != nil {
		return protocol.Result{}, historyError(err)
	}
	return protocol.Success("redid "+name, map[string]any{"action": name}), nil
}

func historyError(err error) error {
	switch {
	case errors.Is(err, journal.ErrNothingToUndo), errors.Is(err, journal.ErrNothingToRedo):
		return conflict("%v", err)
	case errors.Is(err, journal.ErrTransactionOpen):
		return conflict("%v", err)
	}
	return protocol.HostError(err)
}

type propState struct {
	name     string
	value    any
	explicit bool
}

// reown queues owner updates so every node in n's subtree is saved with root.
func reown(tx *journal.Tx, n, root *scene.Node) {
	nodes := n.Subtree()
	prev := make([]*scene.Node, len(nodes))
	for i, x := range nodes {
		prev[i] = x.Owner()
	}
	tx.Step("set owners",
		func() {
			for _, x := range nodes {
				x.SetOwner(root)
			}
		},
		func() {
			for i, x := range nodes {
				x.SetOwner(prev[i])
			}
		})
}

// keptTransform returns the local transform properties that keep n at its
// current world placement once it sits under target.
func keptTransform(n, target *scene.Node) map[string]any {
	switch n.Type().Space {
	case scene.Space2D:
		global := scene.Global2D(n)
		local := scene.Global2D(target).Inverse().Mul(global)
		pos, rot, scale := local.Decompose()
		out := map[string]any{"position": pos}
		if n.HasProperty("rotation") {
			out["rotation"] = rot
		}
		if n.HasProperty("scale") {
			out["scale"] = scale
		}
		return out
	case scene.Space3D:
		global := scene.Global3D(n)
		var parentPos scene.Vec3
		if target.Type().Space == scene.Space3D {
			parentPos = scene.Global3D(target)
		}
		return map[string]any{"position": global.Sub(parentPos)}
	}
	return nil
}

// applyProperties sets declared properties on a detached node and returns
// warnings for undeclared ones.
func applyProperties(n *scene.Node, props map[string]any) ([]string, error) {
	var warnings []string
	for _, name := range sortedKeys(props) {
		def, ok := n.Type().Property(name)
		if !ok {
			warnings = append(warnings, "unknown property: "+name)
			continue
		}
		if err := n.Set(name, props[name]); err != nil {
			return nil, invalid("invalid value for %s: expected %s", name, def.Kind)
		}
	}
	return warnings, nil
}

func nodeError(err error) error {
	switch {
	case errors.Is(err, scene.ErrUnknownType):
		return invalid("%v", err).WithSuggestion("use get_class_info to check type names")
	case errors.Is(err, scene.ErrNotInstantiable):
		return invalid("%v", err)
	case errors.Is(err, scene.ErrInvalidName):
		return invalid("%v", err)
	}
	return protocol.HostError(err)
}

// dropSelection removes n and its descendants from the selection.
func (e *Engine) dropSelection(n *scene.Node) {
	sel := e.host.Selection()
	kept := sel[:0]
	for _, s := range sel {
		if s != n && !n.IsAncestorOf(s) {
			kept = append(kept, s)
		}
	}
	if len(kept) != len(sel) {
		e.host.Select(kept)
	}
	if f := e.host.Focused(); f != nil && (f == n || n.IsAncestorOf(f)) {
		e.host.Focus(nil)
	}
}

func withWarnings(data map[string]any, warnings []string) {
	if len(warnings) > 0 {
		data["warnings"] = warnings
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// within reports whether the relative path p names base or a node below it,
// judged from the paths alone.
func within(p, base string) bool {
	p, base = strings.Trim(p, "/ "), strings.Trim(base, "/ ")
	if p != "" {
		p = path.Clean(p)
	}
	if base != "" {
		base = path.Clean(base)
	}
	if strings.HasPrefix(p, "root/") || strings.HasPrefix(base, "root/") || scene.IsRootMarker(base) {
		return false
	}
	return p == base || strings.HasPrefix(p, base+"/")
}
