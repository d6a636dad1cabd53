package adapter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/prize-indexer/internal/adapter"
)

func TestFileSystem_WriteReadExists(t *testing.T) {
	fs := adapter.NewFileSystem()
	path := filepath.Join(t.TempDir(), "nested", "dir", "pools.json")

	exists, err := fs.Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, fs.WriteFile(path, []byte("first")))
	require.NoError(t, fs.WriteFile(path, []byte("second")))

	exists, err = fs.Exists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
