package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jjudge-oj/todolist/config"
	"github.com/jjudge-oj/todolist/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestLocalClient_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "uploads")

	client, err := storage.NewLocalClient(dir)
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))

	require.NoError(t, client.Put(ctx, "1700000000000-abcd1234-avatar.png", strings.NewReader("png-bytes"), 9, "image/png"))

	obj, err := client.Get(ctx, "1700000000000-abcd1234-avatar.png")
	require.NoError(t, err)
	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.NoError(t, obj.Body.Close())
	require.Equal(t, "png-bytes", string(body))
	require.Equal(t, int64(9), obj.Size)
	require.Equal(t, "image/png", obj.ContentType)

	require.NoError(t, client.Delete(ctx, "1700000000000-abcd1234-avatar.png"))
	_, err = client.Get(ctx, "1700000000000-abcd1234-avatar.png")
	require.ErrorIs(t, err, storage.ErrObjectNotFound)

	// Deleting twice is not an error.
	require.NoError(t, client.Delete(ctx, "1700000000000-abcd1234-avatar.png"))
}

func TestLocalClient_PutDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	client, err := storage.NewLocalClient(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, client.Put(ctx, "same.txt", strings.NewReader("first"), 5, ""))
	require.Error(t, client.Put(ctx, "same.txt", strings.NewReader("second"), 6, ""))
}

func TestLocalClient_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	client, err := storage.NewLocalClient(dir)
	require.NoError(t, err)

	require.Error(t, client.Put(ctx, "../escape.txt", strings.NewReader("x"), 1, ""))
	_, err = client.Get(ctx, "../escape.txt")
	require.ErrorIs(t, err, storage.ErrObjectNotFound)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "escape.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestNew_LocalBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")

	backend, err := storage.New(context.Background(), config.Config{
		Upload: config.UploadConfig{Backend: config.BackendLocal, Dir: dir},
	})
	require.NoError(t, err)
	require.NotNil(t, backend)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := storage.New(context.Background(), config.Config{
		Upload: config.UploadConfig{Backend: "ftp"},
	})
	require.Error(t, err)
}
