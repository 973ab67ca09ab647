package responses

import (
	"time"

	"github.com/postora/postora-server/internal/config"
	domain "github.com/postora/postora-server/internal/domain/upload"
)

// FileDescriptor is the public view of a stored file.
type FileDescriptor struct {
	ID           string     `json:"id"`
	OriginalName string     `json:"original_name"`
	FileName     string     `json:"file_name"`
	FileSize     string     `json:"file_size"`
	FileType     string     `json:"file_type"`
	MimeType     string     `json:"mime_type"`
	URL          string     `json:"url"`
	Bytes        int64      `json:"bytes"`
	UserID       *string    `json:"user_id,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// UploadSingleResponse is returned by POST /v1/uploads/single.
type UploadSingleResponse struct {
	Message string         `json:"message"`
	File    FileDescriptor `json:"file"`
}

// UploadMultipleResponse is returned by POST /v1/uploads/multiple.
type UploadMultipleResponse struct {
	Message string           `json:"message"`
	Count   int              `json:"count"`
	Files   []FileDescriptor `json:"files"`
}

// FileListResponse is a page of stored files.
type FileListResponse struct {
	Data   []FileDescriptor `json:"data"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// PoliciesResponse exposes the active per-category policies.
type PoliciesResponse struct {
	Policies map[string]config.CategoryPolicy `json:"policies"`
}

// BuildFileDescriptor creates the response view from a domain result
func BuildFileDescriptor(result *domain.Result) FileDescriptor {
	file := result.File
	desc := FileDescriptor{
		ID:           file.ID,
		OriginalName: file.OriginalName,
		FileName:     file.FileName,
		FileSize:     result.FormattedSize,
		FileType:     string(file.Category),
		MimeType:     file.MimeType,
		URL:          result.URL,
		Bytes:        file.FileSize,
		UserID:       file.UserID,
	}
	if !file.CreatedAt.IsZero() {
		createdAt := file.CreatedAt.UTC()
		desc.CreatedAt = &createdAt
	}
	return desc
}

// BuildFileDescriptors maps a slice of results
func BuildFileDescriptors(results []*domain.Result) []FileDescriptor {
	out := make([]FileDescriptor, 0, len(results))
	for _, r := range results {
		out = append(out, BuildFileDescriptor(r))
	}
	return out
}
