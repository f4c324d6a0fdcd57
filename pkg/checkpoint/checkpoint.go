package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"pinharvest/pkg/extract"
	"pinharvest/pkg/logger"
)

// Checkpoint represents the resumable state of one target's harvest
type Checkpoint struct {
	Target         string    `json:"target"`
	Kind           string    `json:"kind"`
	ScrollDepth    int       `json:"scroll_depth"`
	SeenKeys       []string  `json:"seen_keys"`
	ItemsCollected int       `json:"items_collected"`
	MediaFetched   int       `json:"media_fetched"`
	Exhausted      bool      `json:"exhausted"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Version        int       `json:"version"`
}

// SeenItemKeys returns the seen set as typed keys, for seeding dedup caches.
func (c *Checkpoint) SeenItemKeys() []extract.ItemKey {
	keys := make([]extract.ItemKey, len(c.SeenKeys))
	for i, k := range c.SeenKeys {
		keys[i] = extract.ItemKey(k)
	}
	return keys
}

// Manager handles checkpoint operations for one target
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager for the named target
func NewManager(target string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	checkpointPath := filepath.Join(checkpointsDir, fmt.Sprintf("%s.checkpoint.json", sanitizeName(target)))

	return &Manager{
		checkpointPath: checkpointPath,
		logger:         logger.GetLogger(),
	}, nil
}

// NewManagerAt creates a manager with an explicit checkpoint path
func NewManagerAt(path string) *Manager {
	return &Manager{checkpointPath: path, logger: logger.GetLogger()}
}

// Create creates a fresh checkpoint for a target
func (m *Manager) Create(target, kind string) (*Checkpoint, error) {
	checkpoint := &Checkpoint{
		Target:    target,
		Kind:      kind,
		SeenKeys:  []string{},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Version:   1,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"target": target,
		"path":   m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint, returning nil when none exists
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"target":          checkpoint.Target,
		"items_collected": checkpoint.ItemsCollected,
		"scroll_depth":    checkpoint.ScrollDepth,
		"updated_at":      checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	// Atomically replace the old checkpoint file
	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"target":          checkpoint.Target,
		"items_collected": checkpoint.ItemsCollected,
		"scroll_depth":    checkpoint.ScrollDepth,
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordProgress updates the walk position and seen set, then persists
func (m *Manager) RecordProgress(checkpoint *Checkpoint, scrollDepth int, seen []extract.ItemKey, exhausted bool) error {
	checkpoint.ScrollDepth = scrollDepth
	checkpoint.Exhausted = exhausted
	checkpoint.SeenKeys = make([]string, len(seen))
	for i, k := range seen {
		checkpoint.SeenKeys[i] = string(k)
	}
	return m.Save(checkpoint)
}

// RecordItem notes one collected item, persisting the new counters
func (m *Manager) RecordItem(checkpoint *Checkpoint, mediaFetched int) error {
	checkpoint.ItemsCollected++
	checkpoint.MediaFetched += mediaFetched
	return m.Save(checkpoint)
}

// sanitizeName makes a target usable as a file name
func sanitizeName(target string) string {
	out := []rune(target)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			out[i] = '_'
		}
	}
	return string(out)
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "pinharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "pinharvest")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "pinharvest")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "pinharvest")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
