package fileid

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_HasPrefixAndParses(t *testing.T) {
	id := New()

	assert.True(t, strings.HasPrefix(id, "file_"))
	assert.True(t, IsValid(id))

	_, err := Parse(id)
	require.NoError(t, err)
}

func TestIsValid_RejectsForeignValues(t *testing.T) {
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("jan_01hxyz"))
	assert.False(t, IsValid("file_not-a-ulid"))
	assert.False(t, IsValid(Token()))
}

func TestToken_ConcurrentCallsAreUnique(t *testing.T) {
	const workers = 8
	const perWorker = 500

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, Token())
			}
			mu.Lock()
			for _, tok := range local {
				seen[tok] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}
