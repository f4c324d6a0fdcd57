package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinharvest/pkg/extract"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	return NewManagerAt(filepath.Join(t.TempDir(), "target.checkpoint.json"))
}

func TestCreateAndLoad(t *testing.T) {
	m := testManager(t)

	created, err := m.Create("pinterest.com/u/kitchen", "board")
	require.NoError(t, err)
	assert.True(t, m.Exists())

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, created.Target, loaded.Target)
	assert.Equal(t, "board", loaded.Kind)
	assert.Equal(t, 1, loaded.Version)
}

func TestLoadMissingReturnsNil(t *testing.T) {
	m := testManager(t)
	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRecordProgressRoundTrip(t *testing.T) {
	m := testManager(t)
	cp, err := m.Create("target", "profile")
	require.NoError(t, err)

	seen := []extract.ItemKey{"a", "b", "c"}
	require.NoError(t, m.RecordProgress(cp, 7, seen, false))

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.ScrollDepth)
	assert.False(t, loaded.Exhausted)
	assert.ElementsMatch(t, seen, loaded.SeenItemKeys())
}

func TestRecordItemAccumulates(t *testing.T) {
	m := testManager(t)
	cp, err := m.Create("target", "board")
	require.NoError(t, err)

	require.NoError(t, m.RecordItem(cp, 3))
	require.NoError(t, m.RecordItem(cp, 2))

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.ItemsCollected)
	assert.Equal(t, 5, loaded.MediaFetched)
}

func TestDelete(t *testing.T) {
	m := testManager(t)
	_, err := m.Create("target", "board")
	require.NoError(t, err)

	require.NoError(t, m.Delete())
	assert.False(t, m.Exists())
	// Deleting again is a no-op.
	require.NoError(t, m.Delete())
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManagerAt(filepath.Join(dir, "t.checkpoint.json"))
	cp, err := m.Create("target", "board")
	require.NoError(t, err)
	require.NoError(t, m.Save(cp))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"))
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "pinterest.com_u_kitchen", sanitizeName("pinterest.com/u/kitchen"))
	assert.NotContains(t, sanitizeName(`a:b*c?"d"`), ":")
}
