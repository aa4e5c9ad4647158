package results

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BaSui01/taskflow/types"
)

// FilesystemStore persists payloads as files under a base directory. Issued
// references carry the absolute path so they stay valid regardless of the
// reader's working directory.
type FilesystemStore struct {
	basepath string
}

// NewFilesystemStore creates a store rooted at basepath, creating the
// directory if needed. The path is resolved to an absolute one.
func NewFilesystemStore(basepath string) (*FilesystemStore, error) {
	abs, err := filepath.Abs(basepath)
	if err != nil {
		return nil, fmt.Errorf("resolve basepath: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create basepath: %w", err)
	}
	return &FilesystemStore{basepath: abs}, nil
}

// Name implements Store.
func (s *FilesystemStore) Name() string { return "filesystem" }

// Basepath returns the absolute base directory.
func (s *FilesystemStore) Basepath() string { return s.basepath }

// Write implements Store.
func (s *FilesystemStore) Write(_ context.Context, key string, payload []byte) (*types.ResultRef, error) {
	path := filepath.Join(s.basepath, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create result dir: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write result %q: %w", key, err)
	}
	return &types.ResultRef{Backend: s.Name(), StorageKey: path}, nil
}

// Read implements Store.
func (s *FilesystemStore) Read(_ context.Context, ref *types.ResultRef) ([]byte, error) {
	path := ref.StorageKey
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.basepath, path)
	}
	payload, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read result %q: %w", ref.StorageKey, err)
	}
	return payload, nil
}
