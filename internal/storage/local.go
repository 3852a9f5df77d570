package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// LocalClient stores objects as flat files inside a directory.
type LocalClient struct {
	dir string
}

func NewLocalClient(dir string) (*LocalClient, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload directory is required")
	}
	return &LocalClient{dir: dir}, nil
}

// EnsureBucket creates the upload directory.
func (l *LocalClient) EnsureBucket(_ context.Context) error {
	return os.MkdirAll(l.dir, 0o755)
}

func (l *LocalClient) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func (l *LocalClient) Get(_ context.Context, key string) (Object, error) {
	path, err := l.path(key)
	if err != nil {
		return Object{}, ErrObjectNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, ErrObjectNotFound
		}
		return Object{}, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return Object{}, err
	}
	if info.IsDir() {
		_ = f.Close()
		return Object{}, ErrObjectNotFound
	}

	return Object{
		Body:        f,
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(key)),
	}, nil
}

func (l *LocalClient) Delete(_ context.Context, key string) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// path maps a key to a file directly inside the upload directory.
func (l *LocalClient) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(l.dir, key), nil
}
