package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrBaselineNotFound is returned when a named baseline does not exist.
var ErrBaselineNotFound = errors.New("baseline not found")

const diffsDir = "_diffs"

// Storage handles baseline persistence
type Storage struct {
	basePath string
}

// NewStorage creates a new storage manager
func NewStorage(basePath string) (*Storage, error) {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		basePath = filepath.Join(home, ".scenebridge", "baselines")
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create baselines dir: %w", err)
	}

	return &Storage{basePath: basePath}, nil
}

// SaveBaseline persists baseline metadata
func (s *Storage) SaveBaseline(baseline *Baseline) error {
	baselineDir := filepath.Join(s.basePath, baseline.Name)
	if err := os.MkdirAll(baselineDir, 0755); err != nil {
		return fmt.Errorf("create baseline dir: %w", err)
	}

	data, err := json.MarshalIndent(baseline, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(baselineDir, "metadata.json"), data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// LoadBaseline loads a baseline from disk
func (s *Storage) LoadBaseline(name string) (*Baseline, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, name, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBaselineNotFound, name)
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var baseline Baseline
	if err := json.Unmarshal(data, &baseline); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &baseline, nil
}

// ListBaselines returns all available baselines, newest first
func (s *Storage) ListBaselines() ([]*Baseline, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Baseline{}, nil
		}
		return nil, fmt.Errorf("read baselines dir: %w", err)
	}

	baselines := []*Baseline{}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == diffsDir {
			continue
		}
		baseline, err := s.LoadBaseline(entry.Name())
		if err != nil {
			// Skip invalid baselines
			continue
		}
		baselines = append(baselines, baseline)
	}

	sort.Slice(baselines, func(i, j int) bool {
		return baselines[i].Timestamp.After(baselines[j].Timestamp)
	})
	return baselines, nil
}

// DeleteBaseline removes a baseline from disk
func (s *Storage) DeleteBaseline(name string) error {
	if err := os.RemoveAll(filepath.Join(s.basePath, name)); err != nil {
		return fmt.Errorf("remove baseline: %w", err)
	}
	return nil
}

// SaveScreenshot saves a screenshot file to a baseline
func (s *Storage) SaveScreenshot(baselineName, filename string, data []byte) error {
	baselineDir := filepath.Join(s.basePath, baselineName)
	if err := os.MkdirAll(baselineDir, 0755); err != nil {
		return fmt.Errorf("create baseline dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(baselineDir, filename), data, 0644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

// GetScreenshotPath returns the path to a screenshot file
func (s *Storage) GetScreenshotPath(baselineName, filename string) string {
	return filepath.Join(s.basePath, baselineName, filename)
}

// SaveDiff writes a comparison report and returns its directory.
func (s *Storage) SaveDiff(result *CompareResult) (string, error) {
	diffName := fmt.Sprintf("%s-%s", result.BaselineName, result.Timestamp.Format("20060102-150405.000"))
	diffDir := filepath.Join(s.GetDiffsPath(), diffName)
	if err := os.MkdirAll(diffDir, 0755); err != nil {
		return "", fmt.Errorf("create diff dir: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(diffDir, "report.json"), data, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return diffDir, nil
}

// GetDiffsPath returns the diffs directory path
func (s *Storage) GetDiffsPath() string {
	return filepath.Join(s.basePath, diffsDir)
}
