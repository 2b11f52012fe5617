// Package editor is the in-process host for the scene document: it owns the
// open document, its undo history, selection, playback and the render loop.
//
// An Editor is not safe for concurrent use. It is driven by a single
// scheduler goroutine; Status is the only method meant for other goroutines.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/scenebridge/internal/behavior"
	"github.com/standardbeagle/scenebridge/internal/journal"
	"github.com/standardbeagle/scenebridge/internal/project"
	"github.com/standardbeagle/scenebridge/internal/render"
	"github.com/standardbeagle/scenebridge/internal/scene"
)

// Extension of scene files.
const SceneExt = ".scene"

var (
	ErrNoDocument   = errors.New("no document open")
	ErrFileNotFound = errors.New("file not found")
)

// Options configures an Editor.
type Options struct {
	Project       *project.Project
	Viewport      render.Viewport
	HistoryLimit  int
	DebugLines    int
	ScriptTimeout time.Duration
	State         *StateManager
	Logger        *slog.Logger
}

// Editor hosts one open document at a time.
type Editor struct {
	opts    Options
	log     *slog.Logger
	proj    *project.Project
	history *journal.History
	debug   *debugRing

	root      *scene.Node
	scenePath string
	dirty     bool

	selection []*scene.Node
	focused   *scene.Node

	play *playback

	frame     uint64
	lastFrame *Frame
	waiters   []waiter
	loads     []pendingLoad

	started   time.Time
	lastTick  time.Time
	tickRate  float64
	renderDur time.Duration

	status atomic.Pointer[Status]
}

type waiter struct {
	at uint64
	fn func(Frame)
}

type pendingLoad struct {
	path string
	done func(*scene.Node, error)
}

// New creates an editor for the given project.
func New(opts Options) *Editor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Viewport.Width <= 0 || opts.Viewport.Height <= 0 {
		opts.Viewport = render.Viewport{Width: 640, Height: 480}
	}
	e := &Editor{
		opts:    opts,
		log:     opts.Logger.With("component", "editor"),
		proj:    opts.Project,
		history: journal.New(opts.HistoryLimit),
		debug:   newDebugRing(opts.DebugLines),
		started: time.Now(),
	}
	e.publish()
	return e
}

// Project returns the project the editor works in.
func (e *Editor) Project() *project.Project { return e.proj }

// Root returns the open document's root, or nil when none is open.
func (e *Editor) Root() *scene.Node { return e.root }

// ScenePath returns the res:// path of the open document, if it has one.
func (e *Editor) ScenePath() string { return e.scenePath }

// Dirty reports unsaved changes.
func (e *Editor) Dirty() bool { return e.dirty }

// MarkUnsaved flags the open document as modified.
func (e *Editor) MarkUnsaved() {
	if e.root != nil {
		e.dirty = true
	}
}

// History exposes the undo/redo journal.
func (e *Editor) History() *journal.History { return e.history }

// Begin opens a named transaction on the journal.
func (e *Editor) Begin(name string) (*journal.Tx, error) {
	if e.root == nil {
		return nil, ErrNoDocument
	}
	return e.history.Begin(name)
}

// Undo reverts the last committed transaction.
func (e *Editor) Undo() (string, error) {
	ent, err := e.history.Undo()
	if err != nil {
		return "", err
	}
	e.dirty = true
	e.pruneSelection()
	return ent.Name, nil
}

// Redo reapplies the last undone transaction.
func (e *Editor) Redo() (string, error) {
	ent, err := e.history.Redo()
	if err != nil {
		return "", err
	}
	e.dirty = true
	e.pruneSelection()
	return ent.Name, nil
}

// NewNode constructs a detached node.
func (e *Editor) NewNode(typeName, name string) (*scene.Node, error) {
	return scene.NewNode(typeName, name)
}

// Compile compiles a behavior script.
func (e *Editor) Compile(path, source string) (*behavior.Script, error) {
	return behavior.Compile(path, source)
}

// NewScene replaces the open document with a fresh one rooted at a node of
// rootType. If path is set the scene is saved there immediately.
func (e *Editor) NewScene(rootType, rootName, path string) (*scene.Node, error) {
	root, err := scene.NewNode(rootType, rootName)
	if err != nil {
		return nil, err
	}
	var abs string
	if path != "" {
		if abs, err = e.scenePathFor(path); err != nil {
			return nil, err
		}
	}
	e.setDocument(root, "")
	if abs != "" {
		if err := e.write(abs, root); err != nil {
			return nil, err
		}
		e.scenePath = e.proj.Res(abs)
		e.touch()
	}
	e.dirty = abs == ""
	e.logf("info", "created scene %s (%s)", rootName, rootType)
	return root, nil
}

// OpenScene schedules path to be loaded on the next Advance. The file must
// exist now; done runs once loading finishes.
func (e *Editor) OpenScene(path string, done func(*scene.Node, error)) error {
	abs, err := e.scenePathFor(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	e.loads = append(e.loads, pendingLoad{path: abs, done: done})
	return nil
}

// LoadScene reads a scene file without opening it.
func (e *Editor) LoadScene(path string) (*scene.Node, string, error) {
	abs, err := e.scenePathFor(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, "", err
	}
	root, err := scene.Decode(data)
	if err != nil {
		return nil, "", err
	}
	return root, e.proj.Res(abs), nil
}

// SaveScene writes the open document. An empty path reuses the document's
// own path. Nodes without a saved owner are skipped and reported.
func (e *Editor) SaveScene(path string) (string, []string, error) {
	if e.root == nil {
		return "", nil, ErrNoDocument
	}
	if path == "" {
		path = e.scenePath
	}
	if path == "" {
		return "", nil, errors.New("scene has no path; pass one to save")
	}
	abs, err := e.scenePathFor(path)
	if err != nil {
		return "", nil, err
	}
	data, skipped, err := scene.Encode(e.root)
	if err != nil {
		return "", nil, err
	}
	if err := writeFile(abs, data); err != nil {
		return "", nil, err
	}
	e.scenePath = e.proj.Res(abs)
	e.dirty = false
	e.touch()
	e.logf("info", "saved %s", e.scenePath)
	return e.scenePath, skipped, nil
}

// SaveResource writes a standalone resource file.
func (e *Editor) SaveResource(path string, r *scene.Resource) (string, error) {
	abs, err := e.proj.Abs(path)
	if err != nil {
		return "", err
	}
	data, err := r.Marshal()
	if err != nil {
		return "", err
	}
	if err := writeFile(abs, data); err != nil {
		return "", err
	}
	return e.proj.Res(abs), nil
}

// RestoreLast opens the most recently used scene, if state is configured and
// the file still exists.
func (e *Editor) RestoreLast() bool {
	if e.opts.State == nil {
		return false
	}
	last := e.opts.State.LastScene()
	if last == "" {
		return false
	}
	err := e.OpenScene(last, func(_ *scene.Node, err error) {
		if err != nil {
			e.logf("warn", "restore %s: %v", last, err)
		}
	})
	return err == nil
}

// Select replaces the selection.
func (e *Editor) Select(nodes []*scene.Node) {
	e.selection = append(e.selection[:0:0], nodes...)
}

// Selection returns the selected nodes.
func (e *Editor) Selection() []*scene.Node {
	return append([]*scene.Node(nil), e.selection...)
}

// Focus makes n the inspected node.
func (e *Editor) Focus(n *scene.Node) { e.focused = n }

// Focused returns the inspected node.
func (e *Editor) Focused() *scene.Node { return e.focused }

// Viewport returns the render target size.
func (e *Editor) Viewport() render.Viewport { return e.opts.Viewport }

// Logf records a line in the editor output.
func (e *Editor) Logf(level, format string, args ...any) { e.logf(level, format, args...) }

// DebugOutput returns up to limit recent output lines.
func (e *Editor) DebugOutput(limit int) []DebugLine { return e.debug.tail(limit) }

func (e *Editor) logf(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.debug.add(level, msg)
	switch level {
	case "error":
		e.log.Error(msg)
	case "warn":
		e.log.Warn(msg)
	default:
		e.log.Debug(msg)
	}
}

func (e *Editor) setDocument(root *scene.Node, resPath string) {
	e.history.Clear()
	e.root = root
	e.scenePath = resPath
	e.dirty = false
	e.selection = nil
	e.focused = nil
}

// pruneSelection drops selected nodes no longer in the document.
func (e *Editor) pruneSelection() {
	kept := e.selection[:0]
	for _, n := range e.selection {
		if e.root != nil && (n == e.root || e.root.IsAncestorOf(n)) {
			kept = append(kept, n)
		}
	}
	e.selection = kept
	if e.focused != nil && (e.root == nil || (e.focused != e.root && !e.root.IsAncestorOf(e.focused))) {
		e.focused = nil
	}
}

func (e *Editor) scenePathFor(path string) (string, error) {
	abs, err := e.proj.Abs(path)
	if err != nil {
		return "", err
	}
	if filepath.Ext(abs) == "" {
		abs += SceneExt
	}
	return abs, nil
}

func (e *Editor) write(abs string, root *scene.Node) error {
	data, _, err := scene.Encode(root)
	if err != nil {
		return err
	}
	return writeFile(abs, data)
}

func (e *Editor) touch() {
	if e.opts.State != nil && e.scenePath != "" {
		e.opts.State.Touch(e.scenePath)
	}
}

func writeFile(abs string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	tmp := abs + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, abs); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
