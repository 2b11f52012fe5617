package project

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Change is a filesystem change inside the project.
type Change struct {
	Path string `json:"path"`
	Op   string `json:"op"`
}

// Watch reports project file changes to out until ctx is cancelled. Sends
// never block: when out is full the change is dropped. Hidden directories are
// not watched.
func (p *Project) Watch(ctx context.Context, out chan<- Change, log *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := p.addDirs(w, p.Path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				// New directories need their own watch.
				_ = p.addDirs(w, ev.Name)
			}
			if hidden(p.Path, ev.Name) || ev.Has(fsnotify.Chmod) {
				continue
			}
			select {
			case out <- Change{Path: p.Res(ev.Name), Op: opName(ev.Op)}:
			default:
				log.Debug("dropping file change", "path", ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "err", err)
		}
	}
}

func (p *Project) addDirs(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != p.Path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func hidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") && seg != "." {
			return true
		}
	}
	return false
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "created"
	case op.Has(fsnotify.Remove):
		return "removed"
	case op.Has(fsnotify.Rename):
		return "renamed"
	default:
		return "modified"
	}
}
