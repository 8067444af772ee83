package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalStore keeps files under a base directory.
type LocalStore struct {
	baseDir string
	logger  *slog.Logger
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(baseDir string, logger *slog.Logger) (*LocalStore, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir %s: %w", baseDir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", abs, err)
	}
	return &LocalStore{
		baseDir: abs,
		logger:  logger.With(slog.String("component", "local_store")),
	}, nil
}

// Save writes r to a new file at key and returns the key as link.
// An existing file is never replaced.
func (s *LocalStore) Save(ctx context.Context, key string, r io.Reader) (string, error) {
	fullPath, key, err := s.resolvePath(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%w: %q", ErrExists, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(f, r)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write file content: %w", err)
	}

	s.logger.DebugContext(ctx, "file saved",
		slog.String("key", key),
		slog.Int64("bytes", written))

	return key, nil
}

// Open returns a reader over the file at key.
func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, _, err := s.resolvePath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	return f, err
}

// Exists reports whether a regular file is stored at key.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, _, err := s.resolvePath(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Delete removes the file at key. Deleting a missing file is not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	fullPath, key, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	s.logger.DebugContext(ctx, "file deleted", slog.String("key", key))
	return nil
}

// LocalPath returns the absolute path of the file at key.
func (s *LocalStore) LocalPath(ctx context.Context, key string) (string, error) {
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotExist
	}
	fullPath, _, err := s.resolvePath(key)
	return fullPath, err
}

func (s *LocalStore) resolvePath(key string) (string, string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(cleaned)), cleaned, nil
}
