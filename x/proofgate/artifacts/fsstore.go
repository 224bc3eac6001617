package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// NewFSStore returns a Store backed by a local directory, used as the
// default deployment backend ahead of wiring a real object store.
// Keys containing "/" are mapped to nested directories under root.
func NewFSStore(root string) Store {
	return &fsStore{root: root}
}

type fsStore struct {
	root string
}

func (s *fsStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *fsStore) Put(_ context.Context, key string, data []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func (s *fsStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *fsStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
