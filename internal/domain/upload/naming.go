package upload

import (
	"path"
	"strings"

	"github.com/postora/postora-server/utils/fileid"
)

const maxExtensionLen = 16

// GenerateName returns a storage name for an uploaded file: a ULID token followed by
// the original extension. The base name of the original is never used.
func GenerateName(originalName string) string {
	return fileid.Token() + Extension(originalName)
}

// Extension extracts the extension of the last path element of name, case preserved.
// Extensions that are not plain ASCII letters and digits are dropped.
func Extension(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	ext := path.Ext(path.Base(name))
	if len(ext) < 2 || len(ext) > maxExtensionLen+1 {
		return ""
	}
	for _, r := range ext[1:] {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isLetter && !isDigit {
			return ""
		}
	}
	return ext
}
