package filestore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

func TestLocalListAndOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested", "deeper"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "deeper", "a.json"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	store, err := New("LOCAL", map[string]interface{}{"dir": dir})
	require.NoError(t, err)
	require.Equal(t, "local", store.Type())

	keys, err := store.List(context.Background(), ".json")
	require.NoError(t, err)
	require.Equal(t, []string{"b.json", "nested/deeper/a.json"}, keys)

	rc, err := store.Open(context.Background(), "nested/deeper/a.json")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "a", string(data))
}

func TestLocalMissingDirListsNothing(t *testing.T) {
	keys, err := NewLocal(filepath.Join(t.TempDir(), "missing")).List(context.Background(), ".json")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestLocalOpenRejectsEscape(t *testing.T) {
	store := NewLocal(t.TempDir())
	_, err := store.Open(context.Background(), "../secret.json")
	require.True(t, errors.Is(err, appErr.ErrInvalidRequest))
	_, err = store.Open(context.Background(), "absent.json")
	require.True(t, errors.Is(err, appErr.ErrNotFound))
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New("", nil)
	require.True(t, errors.Is(err, appErr.ErrConfig))
	_, err = New("ftp", map[string]interface{}{})
	require.True(t, errors.Is(err, appErr.ErrConfig))
	_, err = New("local", map[string]interface{}{})
	require.True(t, errors.Is(err, appErr.ErrConfig))
	_, err = New("s3", map[string]interface{}{"endpoint": "localhost:9000"})
	require.True(t, errors.Is(err, appErr.ErrConfig))
}

func TestEndpointURL(t *testing.T) {
	require.Equal(t, "http://localhost:9000", endpointURL("localhost:9000", false))
	require.Equal(t, "https://s3.example.com", endpointURL("s3.example.com", true))
	require.Equal(t, "http://minio:9000", endpointURL("http://minio:9000", true))
}
