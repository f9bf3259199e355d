package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetsRootDefault(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "datasets"), store.DatasetsRoot())
}

func TestSetDatasetsRootPersists(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	custom := filepath.Join(dir, "elsewhere")
	require.NoError(t, store.SetDatasetsRoot(custom))
	assert.Equal(t, custom, store.DatasetsRoot())

	// A fresh store over the same directory sees the persisted value.
	reloaded, err := NewStore(dir)
	require.NoError(t, err)
	assert.Equal(t, custom, reloaded.DatasetsRoot())
}

func TestEmptySettingsFileRecovers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), nil, 0o644))

	store, err := NewStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "datasets"), store.DatasetsRoot())
}

func TestGetSet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "", store.Get("missing"))
	require.NoError(t, store.Set("theme", "dark"))
	assert.Equal(t, "dark", store.Get("theme"))
}
