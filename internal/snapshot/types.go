package snapshot

import (
	"image"
	"time"
)

// Baseline is a saved viewport frame used as the reference for comparisons.
type Baseline struct {
	Name       string    `json:"name"`
	Timestamp  time.Time `json:"timestamp"`
	GitCommit  string    `json:"git_commit,omitempty"`
	GitBranch  string    `json:"git_branch,omitempty"`
	ScenePath  string    `json:"scene_path,omitempty"`
	Frame      uint64    `json:"frame"`
	NodeCount  int       `json:"node_count"`
	Viewport   Viewport  `json:"viewport"`
	Screenshot string    `json:"screenshot"` // Filename
	Config     Config    `json:"config"`
}

// Viewport represents render target dimensions
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Config holds snapshot configuration
type Config struct {
	DiffThreshold float64 `json:"diff_threshold"` // 0.0 - 1.0
}

// Capture is a rendered frame handed to the manager.
type Capture struct {
	ScenePath string
	Frame     uint64
	NodeCount int
	Image     image.Image
}

// CompareResult holds the results of a baseline comparison
type CompareResult struct {
	BaselineName      string    `json:"baseline_name"`
	Timestamp         time.Time `json:"timestamp"`
	ScenePath         string    `json:"scene_path,omitempty"`
	Frame             uint64    `json:"frame"`
	DiffPercentage    float64   `json:"diff_percentage"`
	ChangedPixels     int       `json:"changed_pixels"`
	ChangedRegion     *Region   `json:"changed_region,omitempty"`
	DiffImagePath     string    `json:"diff_image_path,omitempty"`
	BaselineImagePath string    `json:"baseline_image_path"`
	CurrentImagePath  string    `json:"current_image_path"`
	HasChanges        bool      `json:"has_changes"`
	Description       string    `json:"description"`
}

// Region is the bounding box of changed pixels.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}
