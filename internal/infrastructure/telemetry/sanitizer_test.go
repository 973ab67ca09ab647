package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSanitizer_UnknownLevelIsHashed(t *testing.T) {
	assert.Equal(t, PIILevelHashed, NewSanitizer("bogus", "salt").Level())
	assert.Equal(t, PIILevelNone, NewSanitizer(PIILevelNone, "salt").Level())
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name     string
		level    PIILevel
		input    string
		expected string
	}{
		{"full keeps everything", PIILevelFull, "john@example.com.pdf", "john@example.com.pdf"},
		{"none redacts", PIILevelNone, "holiday.jpg", "[REDACTED]"},
		{"empty stays empty", PIILevelNone, "", ""},
		{"hashed keeps plain names", PIILevelHashed, "holiday.jpg", "holiday.jpg"},
		{"hashed strips client directories", PIILevelHashed, `C:\Users\bob\holiday.jpg`, "holiday.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSanitizer(tt.level, "salt")
			assert.Equal(t, tt.expected, s.FileName(tt.input))
		})
	}
}

func TestFileName_HashedPersonalData(t *testing.T) {
	s := NewSanitizer(PIILevelHashed, "salt")

	for _, input := range []string{"cv-john.doe@example.com.pdf", "invoice 555-123-4567.pdf", "tax 123-45-6789.pdf"} {
		t.Run(input, func(t *testing.T) {
			out := s.FileName(input)
			assert.NotEqual(t, input, out)
			assert.Regexp(t, `^\[FILE:[0-9a-f]{8}\]\.pdf$`, out)
			assert.Equal(t, out, s.FileName(input), "hash must be stable")
		})
	}
}

func TestFileName_SaltChangesHash(t *testing.T) {
	a := NewSanitizer(PIILevelHashed, "salt-a").FileName("john@example.com.png")
	b := NewSanitizer(PIILevelHashed, "salt-b").FileName("john@example.com.png")
	assert.NotEqual(t, a, b)
}

func TestUserID(t *testing.T) {
	id := "user-42"

	assert.Equal(t, "", NewSanitizer(PIILevelHashed, "salt").UserID(nil))
	assert.Equal(t, id, NewSanitizer(PIILevelFull, "salt").UserID(&id))
	assert.Equal(t, "[REDACTED]", NewSanitizer(PIILevelNone, "salt").UserID(&id))

	hashed := NewSanitizer(PIILevelHashed, "salt").UserID(&id)
	assert.Len(t, hashed, 8)
	assert.NotEqual(t, id, hashed)
}
