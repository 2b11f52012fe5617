// Package engine executes protocol commands against the host editor.
//
// Every mutating command validates its parameters and resolves its targets
// before opening exactly one journal transaction, queues do/undo pairs for
// every change it makes (owner updates included), then commits. A command
// that fails never leaves a partial mutation or an open transaction behind.
//
// The engine is not safe for concurrent use; it runs on the scheduler
// goroutine alongside the editor.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/standardbeagle/scenebridge/internal/behavior"
	"github.com/standardbeagle/scenebridge/internal/editor"
	"github.com/standardbeagle/scenebridge/internal/journal"
	"github.com/standardbeagle/scenebridge/internal/project"
	"github.com/standardbeagle/scenebridge/internal/protocol"
	"github.com/standardbeagle/scenebridge/internal/render"
	"github.com/standardbeagle/scenebridge/internal/scene"
	"github.com/standardbeagle/scenebridge/internal/snapshot"
)

// ProtocolVersion is reported by get_version.
const ProtocolVersion = "1.0"

// Host is the editor surface the engine drives. *editor.Editor implements it.
type Host interface {
	Project() *project.Project
	Root() *scene.Node
	ScenePath() string
	MarkUnsaved()

	Begin(name string) (*journal.Tx, error)
	Undo() (string, error)
	Redo() (string, error)

	NewNode(typeName, name string) (*scene.Node, error)
	Compile(path, source string) (*behavior.Script, error)

	NewScene(rootType, rootName, path string) (*scene.Node, error)
	OpenScene(path string, done func(*scene.Node, error)) error
	LoadScene(path string) (*scene.Node, string, error)
	SaveScene(path string) (string, []string, error)
	SaveResource(path string, r *scene.Resource) (string, error)

	Select(nodes []*scene.Node)
	Selection() []*scene.Node
	Focus(n *scene.Node)
	Focused() *scene.Node

	Play(ctx context.Context, mode, scenePath string) (editor.Playback, error)
	Stop() bool
	Playback() editor.Playback

	AfterFrames(n int, fn func(editor.Frame))
	Viewport() render.Viewport
	DebugOutput(limit int) []editor.DebugLine
	Stats() editor.Stats
	Logf(level, format string, args ...any)
}

// Reply delivers a command's result. For suspended commands it runs on a
// later tick.
type Reply func(protocol.Result)

// Options configures an Engine.
type Options struct {
	Version string
	// Snapshots enables the baseline commands when set.
	Snapshots *snapshot.Manager
	// CaptureDir, when set, receives a PNG for every screenshot.
	CaptureDir string
	Logger     *slog.Logger
	// Observe is called once per completed command.
	Observe func(action string, status string, elapsed time.Duration)
}

// Engine dispatches decoded commands.
type Engine struct {
	host Host
	opts Options
	log  *slog.Logger
}

// New creates an engine bound to host.
func New(host Host, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Engine{host: host, opts: opts, log: opts.Logger.With("component", "engine")}
}

// errSuspended is returned by handlers whose reply is delivered later.
var errSuspended = errors.New("suspended")

// Handle decodes one frame and executes it. reply is called exactly once.
func (e *Engine) Handle(ctx context.Context, payload []byte, reply Reply) {
	start := time.Now()
	cmd, env, err := protocol.Decode(payload)

	action := env.Action
	finish := func(res protocol.Result) {
		res.ID = env.ID
		if e.opts.Observe != nil {
			e.opts.Observe(action, res.Status, time.Since(start))
		}
		if !res.OK() {
			e.log.Debug("command failed", "action", action, "code", res.Code, "message", res.Message)
		}
		reply(res)
	}
	if err != nil {
		finish(protocol.Failure(err))
		return
	}
	e.run(ctx, cmd, finish)
}

// Execute runs an already decoded command.
func (e *Engine) Execute(ctx context.Context, cmd protocol.Command, reply Reply) {
	if err := protocol.Check(cmd); err != nil {
		reply(protocol.Failure(err))
		return
	}
	e.run(ctx, cmd, reply)
}

func (e *Engine) run(ctx context.Context, cmd protocol.Command, finish func(protocol.Result)) {
	defer e.recoverInto(cmd.Action(), finish)

	res, err := e.dispatch(ctx, cmd, finish)
	switch {
	case errors.Is(err, errSuspended):
	case err != nil:
		finish(protocol.Failure(err))
	default:
		finish(res)
	}
}

// resume wraps a continuation so it reports like a synchronous handler.
func (e *Engine) resume(action protocol.Action, finish func(protocol.Result), fn func() (protocol.Result, error)) {
	defer e.recoverInto(action, finish)
	res, err := fn()
	if err != nil {
		finish(protocol.Failure(err))
		return
	}
	finish(res)
}

func (e *Engine) recoverInto(action protocol.Action, finish func(protocol.Result)) {
	if r := recover(); r != nil {
		e.log.Error("handler panic", "action", action, "panic", r, "stack", string(debug.Stack()))
		finish(protocol.Failure(protocol.Errorf(protocol.KindHostOperation, "internal error in %s: %v", action, r)))
	}
}

func (e *Engine) dispatch(ctx context.Context, cmd protocol.Command, finish func(protocol.Result)) (protocol.Result, error) {
	switch c := cmd.(type) {
	case protocol.CreateNode:
		return e.createNode(c)
	case protocol.DeleteNode:
		return e.deleteNode(c)
	case protocol.ModifyNode:
		return e.modifyNode(c)
	case protocol.AttachScript:
		return e.attachScript(c)
	case protocol.DuplicateNode:
		return e.duplicateNode(c)
	case protocol.ReparentNode:
		return e.reparentNode(c)
	case protocol.RenameNode:
		return e.renameNode(c)
	case protocol.AddToGroup:
		return e.addToGroup(c)
	case protocol.RemoveFromGroup:
		return e.removeFromGroup(c)
	case protocol.Undo:
		return e.undo()
	case protocol.Redo:
		return e.redo()

	case protocol.CreateScene:
		return e.createScene(c)
	case protocol.OpenScene:
		return e.openScene(c, finish)
	case protocol.SaveCurrentScene:
		return e.saveScene(c)
	case protocol.CreateResource:
		return e.createResource(c)

	case protocol.SelectNodes:
		return e.selectNodes(c)
	case protocol.Play:
		return e.play(ctx, c)
	case protocol.StopPlaying:
		return e.stopPlaying()

	case protocol.SearchByType:
		return e.searchByType(c)
	case protocol.SearchByName:
		return e.searchByName(c)
	case protocol.SearchByGroup:
		return e.searchByGroup(c)
	case protocol.SearchByScript:
		return e.searchByScript(c)

	case protocol.SceneDetailed:
		return e.sceneDetailed(c)
	case protocol.SceneTreeSimple:
		return e.sceneTreeSimple(c)
	case protocol.NodeInfo:
		return e.nodeInfo(c)
	case protocol.ClassInfo:
		return e.classInfo(c)
	case protocol.InspectSceneFile:
		return e.inspectSceneFile(c)
	case protocol.DebugOutput:
		return e.debugOutput(c)
	case protocol.Performance:
		return e.performance()

	case protocol.CaptureVisualContext:
		return e.captureVisualContext(c)
	case protocol.CaptureGameScreenshot:
		return e.captureScreenshot(c.WaitFrames, false, finish)
	case protocol.VisualSnapshot:
		return e.captureScreenshot(c.WaitFrames, true, finish)
	case protocol.CaptureBaseline:
		return e.captureBaseline(c, finish)
	case protocol.CompareBaseline:
		return e.compareBaseline(c, finish)
	case protocol.ListBaselines:
		return e.listBaselines()
	case protocol.GetBaseline:
		return e.getBaseline(c)
	case protocol.DeleteBaseline:
		return e.deleteBaseline(c)

	case protocol.ProjectInfo:
		return e.projectInfo()
	case protocol.Version:
		return e.version()
	case protocol.Ping:
		return e.ping()

	default:
		return protocol.Result{}, protocol.Errorf(protocol.KindDispatch, "unknown action: %s", cmd.Action())
	}
}

// Greeting is the project_info message sent when a connection opens.
func (e *Engine) Greeting() protocol.Greeting {
	p := e.host.Project()
	return protocol.Greeting{
		Type: protocol.TypeProjectInfo,
		Data: protocol.ProjectData{
			ProjectPath:     p.Path,
			ProjectName:     p.Name,
			EditorVersion:   e.opts.Version,
			PluginVersion:   ProtocolVersion,
			ProjectSettings: p.Settings,
			IsReady:         true,
		},
	}
}

// document returns the open root or a document-state error.
func (e *Engine) document() (*scene.Node, error) {
	root := e.host.Root()
	if root == nil {
		return nil, errNoDocument()
	}
	return root, nil
}

// resolve finds path in the open document.
func (e *Engine) resolve(path string) (*scene.Node, *scene.Node, error) {
	root, err := e.document()
	if err != nil {
		return nil, nil, err
	}
	n := scene.Resolve(root, path)
	if n == nil {
		return nil, nil, protocol.Errorf(protocol.KindDocumentState, "node not found: %s", path).
			WithSuggestion("use get_scene_tree_simple to list valid paths")
	}
	return root, n, nil
}

// begin opens the command's transaction.
func (e *Engine) begin(name string) (*journal.Tx, error) {
	tx, err := e.host.Begin(name)
	if err != nil {
		if errors.Is(err, editor.ErrNoDocument) {
			return nil, errNoDocument()
		}
		return nil, protocol.HostError(fmt.Errorf("begin %s: %w", name, err))
	}
	return tx, nil
}

// commit applies the transaction and marks the document dirty.
func (e *Engine) commit(tx *journal.Tx) error {
	if _, err := tx.Commit(); err != nil {
		return protocol.HostError(fmt.Errorf("commit %s: %w", tx.Name(), err))
	}
	e.host.MarkUnsaved()
	return nil
}

func errNoDocument() *protocol.Error {
	return protocol.Errorf(protocol.KindDocumentState, "no document open").
		WithSuggestion("create a scene with create_scene or open one with open_scene")
}

func conflict(format string, args ...any) *protocol.Error {
	return protocol.Errorf(protocol.KindDocumentState, format, args...)
}

func invalid(format string, args ...any) *protocol.Error {
	return protocol.Errorf(protocol.KindValidation, format, args...)
}

// must panics on a step failure. Steps only run after validation, so a
// failure here is a broken invariant and surfaces as a host error.
func must(err error) {
	if err != nil {
		panic(err)
	}
}
