package fileid

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const prefix = "file_"

var (
	entropyOnce sync.Once
	entropyMu   sync.Mutex
	entropy     *ulid.MonotonicEntropy
)

func newEntropy() *ulid.MonotonicEntropy {
	entropyOnce.Do(func() {
		source := rand.NewSource(time.Now().UnixNano())
		entropy = ulid.Monotonic(rand.New(source), 0)
	})
	return entropy
}

// Token returns a lower-case ULID. Tokens are strictly increasing within a process.
func Token() string {
	src := newEntropy()
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), src)
	entropyMu.Unlock()
	return strings.ToLower(id.String())
}

// New returns a file_* ULID string used as a StoredFile identifier.
func New() string {
	return prefix + Token()
}

// IsValid reports whether the string is a file_* ULID.
func IsValid(value string) bool {
	if !strings.HasPrefix(value, prefix) {
		return false
	}
	_, err := Parse(value)
	return err == nil
}

// Parse strips the file_ prefix and returns the ULID.
func Parse(value string) (ulid.ULID, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, prefix)
	return ulid.ParseStrict(strings.ToUpper(value))
}
