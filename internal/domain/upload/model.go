package upload

import (
	"context"
	"io"
	"time"
)

// StoredFile is the metadata record of a successfully uploaded file.
type StoredFile struct {
	ID           string
	OriginalName string
	FileName     string
	FilePath     string
	FileSize     int64
	MimeType     string
	Category     Category
	UserID       *string
	CreatedAt    time.Time
}

// FileInput is one uploaded part. Size is the size declared by the transport; the
// storage layer enforces the limit again while streaming Content.
type FileInput struct {
	FieldName    string
	OriginalName string
	ContentType  string
	Size         int64
	Content      io.Reader
}

// Result is the descriptor returned to callers for a stored file.
type Result struct {
	File          *StoredFile
	URL           string
	FormattedSize string
}

// ListFilter narrows record listings.
type ListFilter struct {
	UserID   *string
	Category Category
	Limit    int
	Offset   int
}

// StagedFile is an upload written to the temp directory and not yet committed.
type StagedFile struct {
	Path string
	Size int64
}

// OptimizeOptions are derived from the image policy.
type OptimizeOptions struct {
	Quality   int
	MaxWidth  int
	MaxHeight int
}

// Repository defines persistence operations needed by the service.
type Repository interface {
	Create(ctx context.Context, file *StoredFile) error
	GetByID(ctx context.Context, id string) (*StoredFile, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]*StoredFile, int64, error)
}

// Storage defines local file operations.
type Storage interface {
	// ResolveDirectory returns the directory for category, creating it if needed.
	ResolveDirectory(category string) (string, error)
	// Locate returns where name would live for category without touching the disk.
	Locate(category, name string) string
	// Stage streams body into the temp directory. It fails with ErrSizeLimitExceeded
	// once more than limit bytes have been read.
	Stage(ctx context.Context, body io.Reader, limit int64) (*StagedFile, error)
	// Commit moves a staged file to dir/name and returns the final path.
	Commit(staged *StagedFile, dir, name string) (string, error)
	// Remove deletes path. A missing file is not an error.
	Remove(path string) error
	Size(path string) (int64, error)
}

// Optimizer re-encodes images into a smaller form.
type Optimizer interface {
	Supports(contentType string) bool
	// Extension is the extension of files produced by Optimize, dot included.
	Extension() string
	Optimize(ctx context.Context, src, dst string, opts OptimizeOptions) error
}
