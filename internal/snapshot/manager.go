// Package snapshot stores rendered viewport frames as named baselines and
// diffs later frames against them.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const screenshotFile = "frame.png"

var baselineName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Manager orchestrates snapshot operations
type Manager struct {
	storage *Storage
	differ  *Differ
	gitDir  string
}

// NewManager creates a new snapshot manager. gitDir, when set, is used to
// stamp baselines with the current commit.
func NewManager(storagePath string, diffThreshold float64, gitDir string) (*Manager, error) {
	storage, err := NewStorage(storagePath)
	if err != nil {
		return nil, fmt.Errorf("create storage: %w", err)
	}

	return &Manager{
		storage: storage,
		differ:  NewDiffer(diffThreshold),
		gitDir:  gitDir,
	}, nil
}

// ValidateName checks that name is usable as a baseline directory.
func ValidateName(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.Length(1, 64),
		validation.Match(baselineName).Error("must be letters, digits, '.', '_' or '-'"),
	)
}

// CreateBaseline saves a frame as the named baseline, replacing any previous
// baseline of that name.
func (m *Manager) CreateBaseline(name string, c Capture) (*Baseline, error) {
	if err := ValidateName(name); err != nil {
		return nil, fmt.Errorf("baseline name: %w", err)
	}

	data, err := encode(c)
	if err != nil {
		return nil, err
	}
	if err := m.storage.SaveScreenshot(name, screenshotFile, data); err != nil {
		return nil, fmt.Errorf("save screenshot: %w", err)
	}

	gitCommit, gitBranch := m.getGitInfo()
	b := c.Image.Bounds()
	baseline := &Baseline{
		Name:       name,
		Timestamp:  time.Now(),
		GitCommit:  gitCommit,
		GitBranch:  gitBranch,
		ScenePath:  c.ScenePath,
		Frame:      c.Frame,
		NodeCount:  c.NodeCount,
		Viewport:   Viewport{Width: b.Dx(), Height: b.Dy()},
		Screenshot: screenshotFile,
		Config:     Config{DiffThreshold: m.differ.threshold},
	}
	if err := m.storage.SaveBaseline(baseline); err != nil {
		return nil, fmt.Errorf("save baseline: %w", err)
	}
	return baseline, nil
}

// CompareToBaseline diffs a frame against the named baseline.
func (m *Manager) CompareToBaseline(name string, c Capture) (*CompareResult, error) {
	if err := ValidateName(name); err != nil {
		return nil, fmt.Errorf("baseline name: %w", err)
	}
	baseline, err := m.storage.LoadBaseline(name)
	if err != nil {
		return nil, err
	}

	baselinePath := m.storage.GetScreenshotPath(name, baseline.Screenshot)
	reference, err := loadImage(baselinePath)
	if err != nil {
		return nil, fmt.Errorf("load baseline image: %w", err)
	}

	result := &CompareResult{
		BaselineName:      name,
		Timestamp:         time.Now(),
		ScenePath:         c.ScenePath,
		Frame:             c.Frame,
		BaselineImagePath: baselinePath,
	}

	data, err := encode(c)
	if err != nil {
		return nil, err
	}
	currentFile := "current_" + baseline.Screenshot
	if err := m.storage.SaveScreenshot(name, currentFile, data); err != nil {
		return nil, fmt.Errorf("save current screenshot: %w", err)
	}
	result.CurrentImagePath = m.storage.GetScreenshotPath(name, currentFile)

	diff, err := m.differ.Compare(reference, c.Image)
	if err != nil {
		result.DiffPercentage = 100
		result.HasChanges = true
		result.Description = fmt.Sprintf("Comparison error: %v", err)
	} else {
		result.DiffPercentage = diff.Fraction * 100 // Convert to percentage
		result.ChangedPixels = diff.Pixels
		result.HasChanges = m.differ.HasSignificantChanges(diff.Fraction)
		result.Description = m.generateDiffDescription(diff.Fraction)
		if !diff.Bounds.Empty() {
			result.ChangedRegion = &Region{
				X: diff.Bounds.Min.X, Y: diff.Bounds.Min.Y,
				Width: diff.Bounds.Dx(), Height: diff.Bounds.Dy(),
			}
		}
	}

	dir, err := m.storage.SaveDiff(result)
	if err != nil {
		return nil, fmt.Errorf("save diff: %w", err)
	}
	if diff != nil {
		result.DiffImagePath = filepath.Join(dir, "diff.png")
		if err := m.differ.SaveDiffImage(diff.Image, result.DiffImagePath); err != nil {
			return nil, fmt.Errorf("save diff image: %w", err)
		}
	}
	return result, nil
}

// ListBaselines returns all available baselines
func (m *Manager) ListBaselines() ([]*Baseline, error) {
	return m.storage.ListBaselines()
}

// DeleteBaseline removes a baseline
func (m *Manager) DeleteBaseline(name string) error {
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("baseline name: %w", err)
	}
	return m.storage.DeleteBaseline(name)
}

// GetBaseline loads a specific baseline
func (m *Manager) GetBaseline(name string) (*Baseline, error) {
	return m.storage.LoadBaseline(name)
}

// ScreenshotPath returns the file holding a baseline's reference image.
func (m *Manager) ScreenshotPath(b *Baseline) string {
	return m.storage.GetScreenshotPath(b.Name, b.Screenshot)
}

func encode(c Capture) ([]byte, error) {
	if c.Image == nil {
		return nil, fmt.Errorf("capture has no image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Image); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *Manager) generateDiffDescription(fraction float64) string {
	percent := fraction * 100

	switch {
	case percent == 0:
		return "No visual changes detected"
	case percent < 0.1:
		return "Minimal changes (< 0.1%)"
	case percent < 1.0:
		return fmt.Sprintf("Minor changes (%.2f%%)", percent)
	case percent < 5.0:
		return fmt.Sprintf("Moderate changes (%.2f%%)", percent)
	default:
		return fmt.Sprintf("Significant changes (%.2f%%)", percent)
	}
}

func (m *Manager) getGitInfo() (commit, branch string) {
	if m.gitDir == "" {
		return "", ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	git := func(args ...string) string {
		cmd := exec.CommandContext(ctx, "git", args...)
		cmd.Dir = m.gitDir
		out, err := cmd.Output()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(out))
	}

	commit = git("rev-parse", "HEAD")
	if len(commit) > 7 {
		commit = commit[:7]
	}
	branch = git("rev-parse", "--abbrev-ref", "HEAD")
	return commit, branch
}
