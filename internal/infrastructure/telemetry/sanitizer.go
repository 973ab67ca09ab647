package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"regexp"
	"strings"
)

// PIILevel controls how much caller-supplied text reaches logs and spans.
type PIILevel string

const (
	// PIILevelNone redacts names and owners entirely
	PIILevelNone PIILevel = "none"
	// PIILevelHashed keeps the extension and replaces personal data with salted hashes
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull performs no sanitization
	PIILevelFull PIILevel = "full"
)

const redacted = "[REDACTED]"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

// Sanitizer scrubs original file names and owner ids before they are logged.
type Sanitizer struct {
	level PIILevel
	salt  string
}

// NewSanitizer returns a sanitizer. Unknown levels behave as hashed.
func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	switch level {
	case PIILevelNone, PIILevelHashed, PIILevelFull:
	default:
		level = PIILevelHashed
	}
	return &Sanitizer{level: level, salt: salt}
}

// Level reports the effective level.
func (s *Sanitizer) Level() PIILevel {
	return s.level
}

// FileName sanitizes an uploaded file's original name. At the hashed level,
// names that carry an email, phone number or SSN are replaced by a hash and
// the extension; other names pass through.
func (s *Sanitizer) FileName(name string) string {
	if name == "" {
		return ""
	}
	switch s.level {
	case PIILevelFull:
		return name
	case PIILevelNone:
		return redacted
	}

	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if !emailPattern.MatchString(base) && !phonePattern.MatchString(base) && !ssnPattern.MatchString(base) {
		return base
	}
	return "[FILE:" + s.hash(base) + "]" + path.Ext(base)
}

// UserID sanitizes an owner id. Nil means anonymous.
func (s *Sanitizer) UserID(userID *string) string {
	if userID == nil || *userID == "" {
		return ""
	}
	switch s.level {
	case PIILevelFull:
		return *userID
	case PIILevelNone:
		return redacted
	default:
		return s.hash(*userID)
	}
}

// hash returns the first 8 hex chars of the salted SHA-256
func (s *Sanitizer) hash(data string) string {
	sum := sha256.Sum256([]byte(data + s.salt))
	return hex.EncodeToString(sum[:])[:8]
}
