package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-o-holic/ai-toolkit-datasets/internal/domain"
)

func TestStateRoundtrip(t *testing.T) {
	dir := t.TempDir()

	_, ok := ReadState(dir)
	assert.False(t, ok, "missing sidecar means no active run")

	state := domain.CaptionState{
		Status:   domain.CaptionStatusRunning,
		Total:    3,
		Provider: domain.ProviderOllama,
		Model:    "llava",
		Prompt:   "describe the shoe",
		BaseURL:  "http://127.0.0.1:11434",
	}
	require.NoError(t, WriteState(dir, state))

	loaded, ok := ReadState(dir)
	require.True(t, ok)
	assert.Equal(t, domain.CaptionStatusRunning, loaded.Status)
	assert.Equal(t, 3, loaded.Total)
	assert.Equal(t, "llava", loaded.Model)
	assert.Equal(t, domain.CaptionStateVersion, loaded.Version)
	assert.False(t, loaded.UpdatedAt.IsZero(), "write stamps updatedAt")
}

func TestReadStateMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFileName), []byte("{not json"), 0o644))

	_, ok := ReadState(dir)
	assert.False(t, ok, "malformed sidecar is treated as no active run")
}

func TestDeleteStateIdempotent(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, DeleteState(dir), "deleting an absent sidecar is not an error")

	require.NoError(t, WriteState(dir, domain.CaptionState{Status: domain.CaptionStatusIdle}))
	require.NoError(t, DeleteState(dir))
	require.NoError(t, DeleteState(dir))

	_, ok := ReadState(dir)
	assert.False(t, ok)
}
