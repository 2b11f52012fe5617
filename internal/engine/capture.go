package engine

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/standardbeagle/scenebridge/internal/editor"
	"github.com/standardbeagle/scenebridge/internal/protocol"
	"github.com/standardbeagle/scenebridge/internal/render"
	"github.com/standardbeagle/scenebridge/internal/scene"
	"github.com/standardbeagle/scenebridge/internal/snapshot"
)

// Default number of frames a capture waits before reading the viewport.
const (
	screenshotWaitFrames = 3
	snapshotWaitFrames   = 1
)

func (e *Engine) captureVisualContext(c protocol.CaptureVisualContext) (protocol.Result, error) {
	vp := e.host.Viewport()
	root := e.host.Root()

	viewport := map[string]any{
		"size":             map[string]int{"x": vp.Width, "y": vp.Height},
		"camera_transform": cameraInfo(root),
	}
	state := map[string]any{
		"scene_open":     root != nil,
		"scene_path":     e.host.ScenePath(),
		"selected_nodes": []string{},
		"playback":       e.host.Playback(),
	}
	data := map[string]any{"viewport_info": viewport, "editor_state": state}
	if root == nil {
		return protocol.Success("no document open", data), nil
	}

	state["selected_nodes"] = paths(root, e.host.Selection())
	if f := e.host.Focused(); f != nil {
		state["focused_node"] = scene.PathFrom(root, f)
	}
	data["scene_tree"] = describe(root, root, 0, 0, false)

	var visible2D, nodes3D []map[string]any
	root.Walk(func(n *scene.Node) bool {
		if v, ok := n.Get("visible"); ok && v == false {
			return false
		}
		switch n.Type().Space {
		case scene.Space2D:
			pos, rot, scale := scene.Global2D(n).Decompose()
			visible2D = append(visible2D, map[string]any{
				"path": scene.PathFrom(root, n), "type": n.TypeName(),
				"global_position": pos, "global_rotation": rot, "global_scale": scale,
			})
		case scene.Space3D:
			if c.Include3D {
				nodes3D = append(nodes3D, map[string]any{
					"path": scene.PathFrom(root, n), "type": n.TypeName(),
					"global_position": scene.Global3D(n),
				})
			}
		}
		return true
	})
	data["visible_nodes"] = visible2D
	if c.Include3D {
		data["nodes_3d"] = nodes3D
	}
	return protocol.Success("visual context for "+root.Name(), data), nil
}

// captureScreenshot renders after wait frames. withContext selects the
// get_visual_snapshot response shape.
func (e *Engine) captureScreenshot(wait int, withContext bool, finish func(protocol.Result)) (protocol.Result, error) {
	if err := e.capturable(); err != nil {
		return protocol.Result{}, err
	}
	action := protocol.ActionCaptureGameScreenshot
	if withContext {
		action = protocol.ActionVisualSnapshot
	}
	if wait <= 0 {
		wait = screenshotWaitFrames
		if withContext {
			wait = snapshotWaitFrames
		}
	}

	e.host.AfterFrames(wait, func(f editor.Frame) {
		e.resume(action, finish, func() (protocol.Result, error) {
			data, err := render.EncodePNG(f.Image)
			if err != nil {
				return protocol.Result{}, protocol.HostError(fmt.Errorf("encode frame: %w", err))
			}
			saved, err := e.saveCapture(f, data)
			if err != nil {
				return protocol.Result{}, protocol.HostError(err)
			}
			b := f.Image.Bounds()
			encoded := base64.StdEncoding.EncodeToString(data)
			if !withContext {
				return protocol.Success("captured frame", map[string]any{
					"size":          map[string]int{"w": b.Dx(), "h": b.Dy()},
					"timestamp":     f.Rendered.Unix(),
					"frame":         f.Number,
					"absolute_path": saved,
					"image_b64":     encoded,
				}), nil
			}
			viewportType := "editor"
			if e.host.Playback().Playing {
				viewportType = "game"
			}
			out := map[string]any{
				"width":         b.Dx(),
				"height":        b.Dy(),
				"timestamp":     f.Rendered.Unix(),
				"frame":         f.Number,
				"image_path":    saved,
				"viewport_type": viewportType,
				"base64_data":   encoded,
				"drawn":         f.Stats.Drawn,
			}
			if root := e.host.Root(); root != nil {
				out["scene_path"] = e.host.ScenePath()
				out["node_count"] = len(root.Subtree())
			}
			return protocol.Success("captured visual snapshot", out), nil
		})
	})
	return protocol.Result{}, errSuspended
}

func (e *Engine) captureBaseline(c protocol.CaptureBaseline, finish func(protocol.Result)) (protocol.Result, error) {
	m, err := e.snapshots()
	if err != nil {
		return protocol.Result{}, err
	}
	if err := snapshot.ValidateName(c.Name); err != nil {
		return protocol.Result{}, invalid("invalid baseline name %q: %v", c.Name, err)
	}
	if err := e.capturable(); err != nil {
		return protocol.Result{}, err
	}

	e.host.AfterFrames(snapshotWaitFrames, func(f editor.Frame) {
		e.resume(c.Action(), finish, func() (protocol.Result, error) {
			b, err := m.CreateBaseline(c.Name, e.frameCapture(f))
			if err != nil {
				return protocol.Result{}, protocol.HostError(err)
			}
			return protocol.Success("baseline "+b.Name+" captured", b), nil
		})
	})
	return protocol.Result{}, errSuspended
}

func (e *Engine) compareBaseline(c protocol.CompareBaseline, finish func(protocol.Result)) (protocol.Result, error) {
	m, _, err := e.storedBaseline(c.Baseline)
	if err != nil {
		return protocol.Result{}, err
	}
	if err := e.capturable(); err != nil {
		return protocol.Result{}, err
	}

	e.host.AfterFrames(snapshotWaitFrames, func(f editor.Frame) {
		e.resume(c.Action(), finish, func() (protocol.Result, error) {
			res, err := m.CompareToBaseline(c.Baseline, e.frameCapture(f))
			if err != nil {
				return protocol.Result{}, protocol.HostError(err)
			}
			return protocol.Success(res.Description, res), nil
		})
	})
	return protocol.Result{}, errSuspended
}

func (e *Engine) listBaselines() (protocol.Result, error) {
	m, err := e.snapshots()
	if err != nil {
		return protocol.Result{}, err
	}
	list, err := m.ListBaselines()
	if err != nil {
		return protocol.Result{}, protocol.HostError(err)
	}
	return protocol.Success(fmt.Sprintf("%d baselines", len(list)), map[string]any{
		"baselines": list,
		"count":     len(list),
	}), nil
}

func (e *Engine) getBaseline(c protocol.GetBaseline) (protocol.Result, error) {
	m, b, err := e.storedBaseline(c.Name)
	if err != nil {
		return protocol.Result{}, err
	}
	return protocol.Success("baseline "+b.Name, map[string]any{
		"baseline":   b,
		"screenshot": m.ScreenshotPath(b),
	}), nil
}

func (e *Engine) deleteBaseline(c protocol.DeleteBaseline) (protocol.Result, error) {
	m, b, err := e.storedBaseline(c.Name)
	if err != nil {
		return protocol.Result{}, err
	}
	if err := m.DeleteBaseline(b.Name); err != nil {
		return protocol.Result{}, protocol.HostError(err)
	}
	return protocol.Success("baseline "+b.Name+" deleted", map[string]any{"deleted": b.Name}), nil
}

// storedBaseline loads a baseline that must already exist.
func (e *Engine) storedBaseline(name string) (*snapshot.Manager, *snapshot.Baseline, error) {
	m, err := e.snapshots()
	if err != nil {
		return nil, nil, err
	}
	if err := snapshot.ValidateName(name); err != nil {
		return nil, nil, invalid("invalid baseline name %q: %v", name, err)
	}
	b, err := m.GetBaseline(name)
	if err != nil {
		if errors.Is(err, snapshot.ErrBaselineNotFound) {
			return nil, nil, conflict("baseline not found: %s", name).
				WithSuggestion("use list_baselines to see stored baselines")
		}
		return nil, nil, protocol.HostError(err)
	}
	return m, b, nil
}

// capturable reports whether there is anything to render.
func (e *Engine) capturable() error {
	if e.host.Root() == nil && !e.host.Playback().Playing {
		return conflict("nothing to capture: no document open and nothing playing").
			WithSuggestion("open a scene with open_scene or start one with play")
	}
	return nil
}

func (e *Engine) snapshots() (*snapshot.Manager, error) {
	if e.opts.Snapshots == nil {
		return nil, protocol.Errorf(protocol.KindHostOperation, "visual baselines are not configured").
			WithSuggestion("set snapshot-dir in scenebridge.kdl")
	}
	return e.opts.Snapshots, nil
}

func (e *Engine) frameCapture(f editor.Frame) snapshot.Capture {
	c := snapshot.Capture{ScenePath: e.host.ScenePath(), Frame: f.Number, Image: f.Image}
	if pb := e.host.Playback(); pb.Playing {
		c.ScenePath = pb.Scene
	}
	if root := e.host.Root(); root != nil {
		c.NodeCount = len(root.Subtree())
	}
	return c
}

// saveCapture writes the PNG to the capture directory when one is set.
func (e *Engine) saveCapture(f editor.Frame, data []byte) (string, error) {
	if e.opts.CaptureDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(e.opts.CaptureDir, 0o755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}
	name := fmt.Sprintf("capture_%s_%06d.png", f.Rendered.Format("20060102_150405"), f.Number)
	path, err := filepath.Abs(filepath.Join(e.opts.CaptureDir, name))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}
	return path, nil
}

func cameraInfo(root *scene.Node) map[string]any {
	out := map[string]any{"origin": scene.Vec2{}, "zoom": scene.Vec2{X: 1, Y: 1}, "camera": ""}
	if root == nil {
		return out
	}
	root.Walk(func(n *scene.Node) bool {
		if out["camera"] != "" {
			return false
		}
		if n.Type().Is("Camera2D") {
			if en, _ := n.Get("enabled"); en == true {
				out["camera"] = scene.PathFrom(root, n)
				out["origin"] = scene.Global2D(n).Origin
				out["zoom"], _ = n.Get("zoom")
			}
		}
		return true
	})
	return out
}
