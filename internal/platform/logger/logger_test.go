package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVsRedactsCredentials(t *testing.T) {
	out := sanitizeKVs([]interface{}{"client_secret", "abc", "business_id", "b1", "access_token", "t", "dangling"})
	assert.Equal(t, []interface{}{"client_secret", "[REDACTED]", "business_id", "b1", "access_token", "[REDACTED]", "dangling"}, out)
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "prod"} {
		l, err := New(mode)
		assert.NoError(t, err)
		assert.NotNil(t, l.SugaredLogger)
	}
	NewNop().Info("discarded", "k", "v")
}
