package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveNameIsStable(t *testing.T) {
	url := "https://img.example.com/736x/ab/cd/photo.jpg"
	assert.Equal(t, DeriveName(url), DeriveName(url))
}

func TestDeriveNameDistinctURLs(t *testing.T) {
	a := DeriveName("https://img.example.com/a.jpg")
	b := DeriveName("https://img.example.com/b.jpg")
	assert.NotEqual(t, a, b)
}

func TestDeriveNameExtensions(t *testing.T) {
	assert.True(t, strings.HasSuffix(DeriveName("https://x.test/a.png"), ".png"))
	assert.True(t, strings.HasSuffix(DeriveName("https://x.test/a.jpeg"), ".jpeg"))
	// No extension or an unknown one falls back to .jpg.
	assert.True(t, strings.HasSuffix(DeriveName("https://x.test/asset"), ".jpg"))
	assert.True(t, strings.HasSuffix(DeriveName("https://x.test/a.tiff?x=1"), ".jpg"))
}

func TestSaveAndExists(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)

	url := "https://img.example.com/photo.jpg"
	assert.False(t, manager.Exists(url))

	path, err := manager.Save(strings.NewReader("image-bytes"), url)
	require.NoError(t, err)
	assert.Equal(t, manager.PathFor(url), path)
	assert.True(t, manager.Exists(url))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestSaveOverwriteConverges(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)

	url := "https://img.example.com/photo.jpg"
	first, err := manager.Save(strings.NewReader("v1"), url)
	require.NoError(t, err)
	second, err := manager.Save(strings.NewReader("v2"), url)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, manager.StoredCount())
}

func TestNewManagerScansExistingFiles(t *testing.T) {
	dir := t.TempDir()
	url := "https://img.example.com/photo.jpg"
	require.NoError(t, os.WriteFile(filepath.Join(dir, DeriveName(url)), []byte("x"), 0644))

	manager, err := NewManager(dir)
	require.NoError(t, err)
	assert.True(t, manager.Exists(url))
	assert.Equal(t, 1, manager.StoredCount())
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	require.NoError(t, err)

	_, err = manager.Save(strings.NewReader("data"), "https://img.example.com/a.jpg")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"))
	}
}
