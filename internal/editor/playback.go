package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/standardbeagle/scenebridge/internal/behavior"
	"github.com/standardbeagle/scenebridge/internal/scene"
)

// Play modes.
const (
	PlayCurrent = "current"
	PlayMain    = "main"
	PlayCustom  = "custom"
)

var ErrNoMainScene = errors.New("project has no main scene configured")

type playback struct {
	mode    string
	scene   string
	root    *scene.Node
	started time.Time
}

// Playback describes the running scene.
type Playback struct {
	Playing bool      `json:"playing"`
	Mode    string    `json:"mode,omitempty"`
	Scene   string    `json:"scene,omitempty"`
	Started time.Time `json:"started,omitempty"`
}

// Play starts running a scene. "current" runs a copy of the open document,
// "main" the project's main scene and "custom" the given scene file. A
// running scene is stopped first. Behavior ready() hooks run immediately;
// script failures are logged, not returned.
func (e *Editor) Play(ctx context.Context, mode, scenePath string) (Playback, error) {
	if mode == "" {
		mode = PlayCurrent
	}
	var (
		root *scene.Node
		name string
		err  error
	)
	switch mode {
	case PlayCurrent:
		if e.root == nil {
			return Playback{}, ErrNoDocument
		}
		root, name = scene.Duplicate(e.root), e.scenePath
	case PlayMain:
		if e.proj.MainScene == "" {
			return Playback{}, ErrNoMainScene
		}
		root, name, err = e.LoadScene(e.proj.MainScene)
	case PlayCustom:
		if scenePath == "" {
			return Playback{}, errors.New("custom play mode requires a scene path")
		}
		root, name, err = e.LoadScene(scenePath)
	default:
		return Playback{}, fmt.Errorf("unknown play mode %q", mode)
	}
	if err != nil {
		return Playback{}, err
	}

	e.Stop()
	e.play = &playback{mode: mode, scene: name, root: root, started: time.Now()}
	e.logf("info", "playing %s (%s)", name, mode)
	e.runReady(ctx, root)
	return e.Playback(), nil
}

// Stop ends playback and reports whether anything was running.
func (e *Editor) Stop() bool {
	if e.play == nil {
		return false
	}
	e.logf("info", "stopped %s", e.play.scene)
	e.play = nil
	return true
}

// Playback returns the current playback state.
func (e *Editor) Playback() Playback {
	if e.play == nil {
		return Playback{}
	}
	return Playback{Playing: true, Mode: e.play.mode, Scene: e.play.scene, Started: e.play.started}
}

func (e *Editor) runReady(ctx context.Context, root *scene.Node) {
	runner := &behavior.Runner{
		Timeout: e.opts.ScriptTimeout,
		Print:   func(line string) { e.logf("print", "%s", line) },
	}
	root.Walk(func(n *scene.Node) bool {
		b := n.Behavior()
		if b == nil {
			return true
		}
		script, err := behavior.Compile(b.Path, b.Source)
		if err != nil {
			e.logf("error", "%s: %v", b.Path, err)
			return true
		}
		self := behavior.Self{Name: n.Name(), Type: n.TypeName(), Path: scene.PathFrom(root, n)}
		if err := runner.Ready(ctx, script, self); err != nil {
			e.logf("error", "%v", err)
		}
		return true
	})
}
