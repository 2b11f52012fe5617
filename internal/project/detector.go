package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	kdl "github.com/sblinch/kdl-go"
)

// MarkerFile identifies the root of a scene project.
const MarkerFile = "project.kdl"

// ResPrefix is the scheme used for project-relative paths.
const ResPrefix = "res://"

// ErrOutsideProject is returned for paths that escape the project directory.
var ErrOutsideProject = errors.New("path is outside the project")

// Project represents a detected scene project.
type Project struct {
	// Path is the absolute path to the project root.
	Path string `json:"path"`
	// Name is the project name (from the marker file or directory name).
	Name string `json:"name"`
	// MainScene is the res:// path of the scene run by play mode "main".
	MainScene string `json:"main_scene,omitempty"`
	// Version is the project's own version string.
	Version string `json:"version,omitempty"`
	// Settings holds free-form project settings.
	Settings map[string]string `json:"settings,omitempty"`
	// HasMarker is false when no project.kdl was found.
	HasMarker bool `json:"has_marker"`
}

type kdlProject struct {
	Name      string            `kdl:"name"`
	MainScene string            `kdl:"main-scene"`
	Version   string            `kdl:"version"`
	Settings  map[string]string `kdl:"settings"`
}

// Detect examines path and returns project information. A directory without
// a marker file is still a project, named after the directory.
func Detect(path string) (*Project, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, os.ErrInvalid
	}

	proj := &Project{
		Path:     absPath,
		Name:     filepath.Base(absPath),
		Settings: map[string]string{},
	}

	markerPath := filepath.Join(absPath, MarkerFile)
	if !fileExists(markerPath) {
		return proj, nil
	}
	data, err := os.ReadFile(markerPath)
	if err != nil {
		return nil, err
	}
	var k kdlProject
	if err := kdl.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("parse %s: %w", MarkerFile, err)
	}
	proj.HasMarker = true
	if k.Name != "" {
		proj.Name = k.Name
	}
	proj.MainScene = k.MainScene
	proj.Version = k.Version
	for key, v := range k.Settings {
		proj.Settings[key] = v
	}
	return proj, nil
}

// Abs maps a res:// or project-relative path to an absolute filesystem
// path, rejecting anything that escapes the project root.
func (p *Project) Abs(path string) (string, error) {
	rel := strings.TrimPrefix(path, ResPrefix)
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", ErrOutsideProject)
	}
	if filepath.IsAbs(rel) {
		r, err := filepath.Rel(p.Path, rel)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrOutsideProject, path)
		}
		rel = r
	}
	rel = filepath.Clean(filepath.FromSlash(rel))
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideProject, path)
	}
	return filepath.Join(p.Path, rel), nil
}

// Res returns the res:// form of an absolute path inside the project.
func (p *Project) Res(abs string) string {
	rel, err := filepath.Rel(p.Path, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	return ResPrefix + filepath.ToSlash(rel)
}

// Files lists project files with one of the given extensions as res://
// paths, sorted. Hidden directories are skipped.
func (p *Project) Files(exts ...string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(p.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != p.Path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if len(exts) == 0 || hasExt(path, exts) {
			out = append(out, p.Res(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func hasExt(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
