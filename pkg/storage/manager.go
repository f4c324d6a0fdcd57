package storage

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

const defaultExtension = ".jpg"

// DeriveName returns the content-addressed file name for a source URL: the
// MD5 hex digest of the full URL plus the URL path's extension, defaulting
// to ".jpg" when the path carries none. Pure and idempotent.
func DeriveName(sourceURL string) string {
	sum := md5.Sum([]byte(sourceURL))
	return hex.EncodeToString(sum[:]) + deriveExtension(sourceURL)
}

func deriveExtension(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return defaultExtension
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".mp4":
		return ext
	default:
		return defaultExtension
	}
}

// Manager handles media file storage and duplicate detection
type Manager struct {
	baseDir     string
	storedFiles map[string]bool
	mu          sync.RWMutex
}

// NewManager creates a new storage manager rooted at baseDir
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		baseDir:     baseDir,
		storedFiles: make(map[string]bool),
	}

	// Scan existing files so reruns recognize earlier downloads
	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles indexes the output directory
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			m.storedFiles[entry.Name()] = true
		}
	}

	return nil
}

// PathFor returns the absolute path the URL's content is stored at
func (m *Manager) PathFor(sourceURL string) string {
	return filepath.Join(m.baseDir, DeriveName(sourceURL))
}

// Exists reports whether the asset at the URL has already been stored
func (m *Manager) Exists(sourceURL string) bool {
	name := DeriveName(sourceURL)

	m.mu.RLock()
	cached := m.storedFiles[name]
	m.mu.RUnlock()
	if cached {
		return true
	}

	// Double-check on disk in case another process wrote it
	if _, err := os.Stat(filepath.Join(m.baseDir, name)); err == nil {
		m.mu.Lock()
		m.storedFiles[name] = true
		m.mu.Unlock()
		return true
	}

	return false
}

// Save stores the asset bytes under the URL's derived name and returns the
// final path. Overwriting an existing file is allowed; same URL means same
// content, so the write converges.
func (m *Manager) Save(r io.Reader, sourceURL string) (string, error) {
	name := DeriveName(sourceURL)
	filename := filepath.Join(m.baseDir, name)

	// Write to a temporary file first
	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save media data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	// Atomic rename
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.storedFiles[name] = true
	m.mu.Unlock()

	return filename, nil
}

// BaseDir returns the output directory path
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// StoredCount returns the number of stored files
func (m *Manager) StoredCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.storedFiles)
}
