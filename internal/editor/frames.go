package editor

import (
	"image"
	"os"
	"runtime"
	"time"

	"github.com/standardbeagle/scenebridge/internal/render"
	"github.com/standardbeagle/scenebridge/internal/scene"
)

// Frame is one rendered viewport image.
type Frame struct {
	Number   uint64
	Image    *image.RGBA
	Stats    render.Stats
	Rendered time.Time
	Duration time.Duration
}

// Status is a snapshot of editor state safe to read from any goroutine.
type Status struct {
	SceneOpen  bool      `json:"scene_open"`
	SceneName  string    `json:"scene_name,omitempty"`
	ScenePath  string    `json:"scene_path,omitempty"`
	Dirty      bool      `json:"dirty"`
	NodeCount  int       `json:"node_count"`
	Playing    bool      `json:"playing"`
	Frame      uint64    `json:"frame"`
	UndoDepth  int       `json:"undo_depth"`
	RedoDepth  int       `json:"redo_depth"`
	PendingOps int       `json:"pending_ops"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Stats are runtime performance figures.
type Stats struct {
	FPS            float64 `json:"fps"`
	Frame          uint64  `json:"frame"`
	NodeCount      int     `json:"node_count"`
	LastRenderMS   float64 `json:"last_render_ms"`
	DrawCalls      int     `json:"draw_calls"`
	HeapAllocBytes uint64  `json:"heap_alloc_bytes"`
	Goroutines     int     `json:"goroutines"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// AfterFrames runs fn with the frame rendered n frames from now. n <= 0
// means the next frame.
func (e *Editor) AfterFrames(n int, fn func(Frame)) {
	if n < 1 {
		n = 1
	}
	e.waiters = append(e.waiters, waiter{at: e.frame + uint64(n), fn: fn})
}

// Pending reports how many suspended operations are waiting on Advance.
func (e *Editor) Pending() int { return len(e.waiters) + len(e.loads) }

// FrameNumber returns the current frame counter.
func (e *Editor) FrameNumber() uint64 { return e.frame }

// LastFrame returns the most recently rendered frame, if any.
func (e *Editor) LastFrame() *Frame { return e.lastFrame }

// Advance runs one editor frame: deferred loads complete, the frame counter
// moves, and a render happens if any waiter is due.
func (e *Editor) Advance(now time.Time) {
	if !e.lastTick.IsZero() {
		if dt := now.Sub(e.lastTick).Seconds(); dt > 0 {
			// Exponential smoothing keeps the reading stable across jittery ticks.
			e.tickRate = 0.9*e.tickRate + 0.1*(1/dt)
		}
	}
	e.lastTick = now

	loads := e.loads
	e.loads = nil
	for _, l := range loads {
		root, err := e.load(l.path)
		if l.done != nil {
			l.done(root, err)
		}
	}

	e.frame++
	var due []waiter
	kept := e.waiters[:0]
	for _, w := range e.waiters {
		if w.at <= e.frame {
			due = append(due, w)
		} else {
			kept = append(kept, w)
		}
	}
	e.waiters = kept

	if len(due) > 0 {
		f := e.Render()
		for _, w := range due {
			w.fn(f)
		}
	}
	e.publish()
}

// Render draws the current view: the running scene while playing, the open
// document otherwise.
func (e *Editor) Render() Frame {
	start := time.Now()
	root := e.root
	if e.play != nil {
		root = e.play.root
	}
	img, stats := render.Render(root, e.opts.Viewport)
	f := Frame{Number: e.frame, Image: img, Stats: stats, Rendered: time.Now(), Duration: time.Since(start)}
	e.renderDur = f.Duration
	e.lastFrame = &f
	return f
}

func (e *Editor) load(abs string) (*scene.Node, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		e.logf("error", "open %s: %v", abs, err)
		return nil, err
	}
	root, err := scene.Decode(data)
	if err != nil {
		e.logf("error", "open %s: %v", abs, err)
		return nil, err
	}
	e.setDocument(root, e.proj.Res(abs))
	e.touch()
	e.logf("info", "opened %s", e.scenePath)
	return root, nil
}

// Stats returns performance figures.
func (e *Editor) Stats() Stats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s := Stats{
		FPS:            e.tickRate,
		Frame:          e.frame,
		NodeCount:      e.nodeCount(),
		LastRenderMS:   float64(e.renderDur) / float64(time.Millisecond),
		HeapAllocBytes: ms.HeapAlloc,
		Goroutines:     runtime.NumGoroutine(),
		UptimeSeconds:  time.Since(e.started).Seconds(),
	}
	if e.lastFrame != nil {
		s.DrawCalls = e.lastFrame.Stats.Drawn
	}
	return s
}

// Status returns the latest published snapshot.
func (e *Editor) Status() Status {
	if s := e.status.Load(); s != nil {
		return *s
	}
	return Status{}
}

func (e *Editor) publish() {
	undo, redo := e.history.Len()
	s := &Status{
		SceneOpen:  e.root != nil,
		ScenePath:  e.scenePath,
		Dirty:      e.dirty,
		NodeCount:  e.nodeCount(),
		Playing:    e.play != nil,
		Frame:      e.frame,
		UndoDepth:  undo,
		RedoDepth:  redo,
		PendingOps: e.Pending(),
		UpdatedAt:  time.Now(),
	}
	if e.root != nil {
		s.SceneName = e.root.Name()
	}
	e.status.Store(s)
}

func (e *Editor) nodeCount() int {
	if e.root == nil {
		return 0
	}
	return len(e.root.Subtree())
}
