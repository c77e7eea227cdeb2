package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrOutsideTempDir is returned when a path does not belong to the
	// storage's temp directory.
	ErrOutsideTempDir = errors.New("storage: path is outside the temp directory")
)

// partialPrefix marks files that are still being written.
const partialPrefix = ".partial-"

// LocalStorage implements the Storage interface using local disk.
// Files become visible under their final name only once fully written, so a
// reader never observes a truncated image or video. It does not support
// publishing unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// If tempDir is empty, a "slideshow" directory under os.TempDir() is used.
// The directory is created if it doesn't exist, and partial files left by
// an interrupted process are removed.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "slideshow")
	}
	tempDir, err := filepath.Abs(tempDir)
	if err != nil {
		return nil, fmt.Errorf("resolve temp directory: %w", err)
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	leftovers, _ := filepath.Glob(filepath.Join(tempDir, partialPrefix+"*"))
	for _, p := range leftovers {
		_ = os.Remove(p)
	}

	return &LocalStorage{tempDir: tempDir}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// SaveTemp writes data to a new file and returns its path. The file is named
// after the base of name with a unique suffix inserted before the extension,
// so "job-1.mp4" becomes e.g. "job-1_3f2a9c1e.mp4".
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	partial, err := os.CreateTemp(s.tempDir, partialPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	partialName := partial.Name()

	if _, err := io.Copy(partial, data); err != nil {
		_ = partial.Close()
		_ = os.Remove(partialName)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := partial.Close(); err != nil {
		_ = os.Remove(partialName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	final := filepath.Join(s.tempDir, uniqueName(name))
	if err := os.Rename(partialName, final); err != nil {
		_ = os.Remove(partialName)
		return "", fmt.Errorf("finalize temp file: %w", err)
	}

	return final, nil
}

// uniqueName strips directories from name and inserts a random suffix
// before its extension.
func uniqueName(name string) string {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		name = "file"
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return stem + "_" + uuid.NewString()[:8] + ext
}

// LoadTemp opens a file previously returned by SaveTemp.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if !s.owns(path) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideTempDir, path)
	}

	f, err := os.Open(path) // #nosec G304 - path is confined to the temp directory
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// CleanupTemp removes files previously returned by SaveTemp.
// Missing files are ignored. It continues past failures and returns them
// joined.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}
		if !s.owns(p) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrOutsideTempDir, p))
			continue
		}

		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove temp file %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// owns reports whether path names a file directly inside the temp directory.
func (s *LocalStorage) owns(path string) bool {
	if path == "" || !filepath.IsAbs(path) {
		return false
	}
	return filepath.Dir(filepath.Clean(path)) == s.tempDir
}

// Publish is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Publish(_ context.Context, _, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// Unpublish is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Unpublish(_ context.Context, _ string) error {
	return ErrS3NotConfigured
}
