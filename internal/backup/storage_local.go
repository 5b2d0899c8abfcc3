package backup

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorageProvider implements StorageProvider for local file system storage
type LocalStorageProvider struct {
	basePath    string
	permissions os.FileMode
}

// NewLocalStorageProvider creates a new LocalStorageProvider instance
func NewLocalStorageProvider(config *LocalConfig) (*LocalStorageProvider, error) {
	if config == nil || config.BasePath == "" {
		return nil, NewValidationError("local storage base path is required", nil)
	}

	perm := config.Permissions
	if perm == 0 {
		perm = 0755
	}
	provider := &LocalStorageProvider{
		basePath:    filepath.Clean(config.BasePath),
		permissions: perm,
	}

	if err := os.MkdirAll(provider.basePath, provider.permissions); err != nil {
		return nil, NewStorageError("failed to create base directory", err).
			WithContext("base_path", provider.basePath)
	}
	return provider, nil
}

// Put writes data to path, replacing any existing file atomically
func (lsp *LocalStorageProvider) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return NewStorageError("upload canceled", err)
	}

	target, err := lsp.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), lsp.permissions); err != nil {
		return NewStorageError("failed to create object directory", err).WithContext("path", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return NewStorageError("failed to create temporary file", err).WithContext("path", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return NewStorageError("failed to write object", err).WithContext("path", path)
	}
	if err := tmp.Close(); err != nil {
		return NewStorageError("failed to flush object", err).WithContext("path", path)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return NewStorageError("failed to set object permissions", err).WithContext("path", path)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return NewStorageError("failed to move object into place", err).WithContext("path", path)
	}
	return nil
}

// Remove deletes the file at path. A missing file is not an error.
func (lsp *LocalStorageProvider) Remove(ctx context.Context, path string) error {
	target, err := lsp.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return NewStorageError("failed to remove object", err).WithContext("path", path)
	}
	return nil
}

// Location returns the file system path of an object
func (lsp *LocalStorageProvider) Location(path string) string {
	target, err := lsp.resolve(path)
	if err != nil {
		return path
	}
	return target
}

// resolve maps an object path under basePath, rejecting traversal
func (lsp *LocalStorageProvider) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(path, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", NewValidationError("object path escapes the storage root", nil).WithContext("path", path)
	}
	return filepath.Join(lsp.basePath, clean), nil
}
