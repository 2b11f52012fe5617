package editor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const maxRecentScenes = 10

// RecentScene is one entry in the recently used scene list.
type RecentScene struct {
	Path     string `json:"path"`
	OpenedAt string `json:"opened_at"`
}

// PersistentState stores editor state that survives restarts.
type PersistentState struct {
	Version   int           `json:"version"`
	LastScene string        `json:"last_scene,omitempty"`
	Recent    []RecentScene `json:"recent,omitempty"`
	UpdatedAt string        `json:"updated_at"`
}

// StateManager persists editor state to a JSON file with debounced writes.
type StateManager struct {
	statePath string
	mu        sync.RWMutex
	state     PersistentState

	saveTimer    *time.Timer
	saveInterval time.Duration
	pendingSave  bool
}

// StateConfig configures the state manager.
type StateConfig struct {
	// Path is the state file. Empty uses DefaultStatePath.
	Path string
	// SaveInterval is the debounce window for writes.
	SaveInterval time.Duration
	// AutoLoad loads existing state on creation.
	AutoLoad bool
}

// DefaultStatePath returns the default state file path.
func DefaultStatePath() string {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, "scenebridge", "state.json")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "scenebridge", "state.json")
	}
	return filepath.Join(os.TempDir(), "scenebridge-state.json")
}

// NewStateManager creates a state manager.
func NewStateManager(cfg StateConfig) *StateManager {
	if cfg.Path == "" {
		cfg.Path = DefaultStatePath()
	}
	if cfg.SaveInterval == 0 {
		cfg.SaveInterval = time.Second
	}
	sm := &StateManager{
		statePath:    cfg.Path,
		saveInterval: cfg.SaveInterval,
		state:        PersistentState{Version: 1},
	}
	if cfg.AutoLoad {
		// Missing or unreadable state starts empty.
		_ = sm.Load()
	}
	return sm
}

// Load reads state from disk. A missing file is not an error.
func (sm *StateManager) Load() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	data, err := os.ReadFile(sm.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}
	var state PersistentState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}
	sm.state = state
	return nil
}

// Save writes state to disk immediately.
func (sm *StateManager) Save() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.saveLocked()
}

func (sm *StateManager) saveLocked() error {
	sm.state.UpdatedAt = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(sm.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(sm.statePath), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmpPath := sm.statePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmpPath, sm.statePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// SaveDebounced schedules a save after the debounce window.
func (sm *StateManager) SaveDebounced() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.pendingSave = true
	if sm.saveTimer != nil {
		sm.saveTimer.Stop()
	}
	sm.saveTimer = time.AfterFunc(sm.saveInterval, func() {
		sm.mu.Lock()
		if sm.pendingSave {
			sm.pendingSave = false
			_ = sm.saveLocked()
		}
		sm.mu.Unlock()
	})
}

// Touch records path as the most recently used scene.
func (sm *StateManager) Touch(path string) {
	sm.mu.Lock()
	sm.state.LastScene = path
	recent := []RecentScene{{Path: path, OpenedAt: time.Now().Format(time.RFC3339)}}
	for _, r := range sm.state.Recent {
		if r.Path != path && len(recent) < maxRecentScenes {
			recent = append(recent, r)
		}
	}
	sm.state.Recent = recent
	sm.mu.Unlock()

	sm.SaveDebounced()
}

// LastScene returns the most recently used scene path.
func (sm *StateManager) LastScene() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state.LastScene
}

// Recent returns the recent scene list, newest first.
func (sm *StateManager) Recent() []RecentScene {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]RecentScene, len(sm.state.Recent))
	copy(out, sm.state.Recent)
	return out
}

// Flush writes any pending debounced save.
func (sm *StateManager) Flush() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.saveTimer != nil {
		sm.saveTimer.Stop()
		sm.saveTimer = nil
	}
	if sm.pendingSave {
		sm.pendingSave = false
		return sm.saveLocked()
	}
	return nil
}
