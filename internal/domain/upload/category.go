package upload

import (
	"strings"

	"github.com/postora/postora-server/internal/config"
)

// Category selects storage location and validation policy for a file.
type Category string

const (
	CategoryImage    Category = config.CategoryImage
	CategoryVideo    Category = config.CategoryVideo
	CategoryAudio    Category = config.CategoryAudio
	CategoryDocument Category = config.CategoryDocument
)

// Classify maps a declared content type to a category. It never fails: anything
// that is not image, video or audio is a document, and the validator decides
// whether that document type is acceptable.
func Classify(contentType string) Category {
	ct := NormalizeContentType(contentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return CategoryImage
	case strings.HasPrefix(ct, "video/"):
		return CategoryVideo
	case strings.HasPrefix(ct, "audio/"):
		return CategoryAudio
	default:
		return CategoryDocument
	}
}

// NormalizeContentType lower-cases a content type and drops its parameters.
func NormalizeContentType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

// ParseCategory converts a URL segment into a known category.
func ParseCategory(value string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(value))); c {
	case CategoryImage, CategoryVideo, CategoryAudio, CategoryDocument:
		return c, true
	default:
		return "", false
	}
}
