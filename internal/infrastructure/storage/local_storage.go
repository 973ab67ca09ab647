package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/postora/postora-server/internal/config"
	"github.com/postora/postora-server/internal/domain/upload"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// LocalStorage keeps uploads on the local filesystem, one directory per category.
type LocalStorage struct {
	dirs     map[string]string
	fallback string
	tempDir  string
	log      zerolog.Logger
}

// NewLocalStorage creates a new local filesystem storage backend. Directories are
// created lazily by ResolveDirectory, except the temp dir.
func NewLocalStorage(cfg *config.Config, log zerolog.Logger) (*LocalStorage, error) {
	logger := log.With().Str("component", "local-storage").Logger()

	storage := &LocalStorage{
		dirs: map[string]string{
			config.CategoryImage:    cfg.StoragePath(cfg.ImageDir),
			config.CategoryVideo:    cfg.StoragePath(cfg.VideoDir),
			config.CategoryDocument: cfg.StoragePath(cfg.DocumentDir),
		},
		fallback: cfg.StoragePath(cfg.FallbackDir),
		tempDir:  cfg.StoragePath(cfg.TempDir),
		log:      logger,
	}

	if err := os.MkdirAll(storage.tempDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	logger.Info().
		Str("root", cfg.StorageRoot).
		Str("temp", storage.tempDir).
		Msg("local storage initialized")

	return storage, nil
}

// Locate returns the directory path for category joined with name.
func (l *LocalStorage) Locate(category, name string) string {
	return filepath.Join(l.directoryFor(category), name)
}

// ResolveDirectory returns the directory for category, creating it and any
// missing parents. Unknown categories map to the fallback directory.
func (l *LocalStorage) ResolveDirectory(category string) (string, error) {
	dir := l.directoryFor(category)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return dir, nil
}

func (l *LocalStorage) directoryFor(category string) string {
	if dir, ok := l.dirs[category]; ok {
		return dir
	}
	return l.fallback
}

// Stage streams body into a temp file, enforcing limit, and syncs it to disk.
func (l *LocalStorage) Stage(ctx context.Context, body io.Reader, limit int64) (*upload.StagedFile, error) {
	if err := os.MkdirAll(l.tempDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	tmp, err := os.CreateTemp(l.tempDir, "upload-*.part")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	// Read one byte past the limit so an oversized body is detectable.
	written, err := io.Copy(tmp, io.LimitReader(&contextReader{ctx: ctx, r: body}, limit+1))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if written > limit {
		cleanup()
		return nil, fmt.Errorf("%w: more than %d bytes", upload.ErrSizeLimitExceeded, limit)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	l.log.Debug().
		Str("path", tmpPath).
		Int64("bytes", written).
		Msg("upload staged")

	return &upload.StagedFile{Path: tmpPath, Size: written}, nil
}

// Commit atomically moves a staged file to dir/name. It refuses to replace an
// existing file.
func (l *LocalStorage) Commit(staged *upload.StagedFile, dir, name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	finalPath := filepath.Join(dir, name)
	if _, err := os.Lstat(finalPath); err == nil {
		return "", fmt.Errorf("file %s already exists", finalPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to check %s: %w", finalPath, err)
	}
	if err := os.Chmod(staged.Path, filePerm); err != nil {
		return "", fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(staged.Path, finalPath); err != nil {
		return "", fmt.Errorf("failed to move upload into place: %w", err)
	}
	return finalPath, nil
}

// Remove deletes path. A file that is already gone is not an error.
func (l *LocalStorage) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// Size returns the size of a regular file.
func (l *LocalStorage) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", path)
	}
	return info.Size(), nil
}

// Health checks that the temp directory is writable.
func (l *LocalStorage) Health() error {
	probe, err := os.CreateTemp(l.tempDir, "health-*")
	if err != nil {
		return fmt.Errorf("storage not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// SweepStaging removes staging and optimizer leftovers older than maxAge. They
// only survive a crash between staging and commit; live uploads are far younger.
func (l *LocalStorage) SweepStaging(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	patterns := []string{
		filepath.Join(l.tempDir, "upload-*.part"),
		filepath.Join(l.tempDir, "health-*"),
	}
	for _, dir := range l.categoryDirs() {
		patterns = append(patterns, filepath.Join(dir, ".optimize-*.tmp"))
	}

	removed := 0
	var errs []error
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, path := range matches {
			info, err := os.Lstat(path)
			if err != nil || !info.Mode().IsRegular() || info.ModTime().After(cutoff) {
				continue
			}
			if err := l.Remove(path); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		l.log.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("swept stale staging files")
	}
	return removed, errors.Join(errs...)
}

func (l *LocalStorage) categoryDirs() []string {
	dirs := make([]string, 0, len(l.dirs)+1)
	for _, dir := range l.dirs {
		dirs = append(dirs, dir)
	}
	return append(dirs, l.fallback)
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
