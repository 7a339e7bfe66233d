package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel := filepath.Join("proc_1", "feedback_report.pdf")
	saved, err := store.Save(rel, []byte("%PDF-1.4 report"))
	require.NoError(t, err)
	assert.Equal(t, rel, saved)

	file, err := store.Open(rel)
	require.NoError(t, err)
	defer file.Close()

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 report", string(data))
}

func TestLocalStorageDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	rel := filepath.Join("proc_2", "feedback_report.pdf")
	_, err = store.Save(rel, []byte("data"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(rel))
	_, err = os.Stat(filepath.Join(dir, rel))
	assert.True(t, os.IsNotExist(err))

	// deleting a missing file is not an error
	require.NoError(t, store.Delete(rel))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	oldRel := filepath.Join("proc_old", "feedback_report.pdf")
	freshRel := filepath.Join("proc_new", "feedback_report.pdf")
	_, err = store.Save(oldRel, []byte("stale"))
	require.NoError(t, err)
	_, err = store.Save(freshRel, []byte("fresh"))
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, oldRel), stale, stale))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, oldRel, deleted[0])

	_, err = os.Stat(filepath.Join(dir, oldRel))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, freshRel))
	assert.NoError(t, err)
}
