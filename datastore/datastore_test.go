package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	IDs []int64 `json:"ids"`
}

func TestLoad_MissingFile(t *testing.T) {
	ds, err := New(filepath.Join(t.TempDir(), "nested", "state.json"))
	require.NoError(t, err)

	var d doc
	found, err := ds.Load(&d)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSave_SurvivesReopenAndLeavesNoTemp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ds, err := New(path)
	require.NoError(t, err)

	require.NoError(t, ds.Save(doc{IDs: []int64{3, 5}}))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	reopened, err := New(path)
	require.NoError(t, err)
	var d doc
	found, err := reopened.Load(&d)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []int64{3, 5}, d.IDs)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	ds, err := New(path)
	require.NoError(t, err)
	_, err = ds.Load(&doc{})
	assert.Error(t, err)
}

func TestWriteFileAtomic_FailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	// a directory where the temp file should go makes the create fail
	require.NoError(t, os.Mkdir(path+".tmp", 0755))

	err := WriteFileAtomic(path, []byte("new"))
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}
