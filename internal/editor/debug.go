package editor

import (
	"sync"
	"time"
)

// DebugLine is one line of editor output.
type DebugLine struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// debugRing keeps the most recent output lines.
type debugRing struct {
	mu    sync.Mutex
	lines []DebugLine
	next  int
	full  bool
}

func newDebugRing(size int) *debugRing {
	if size <= 0 {
		size = 1000
	}
	return &debugRing{lines: make([]DebugLine, size)}
}

func (r *debugRing) add(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.next] = DebugLine{Time: time.Now(), Level: level, Message: msg}
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
}

// tail returns up to limit most recent lines, oldest first. limit <= 0 returns all.
func (r *debugRing) tail(limit int) []DebugLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []DebugLine
	if r.full {
		all = append(all, r.lines[r.next:]...)
	}
	all = append(all, r.lines[:r.next]...)
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}
