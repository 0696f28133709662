package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_IssueAndValidate(t *testing.T) {
	auth := NewAuthService("orchestrator", "s3cret", "signing-key")

	_, err := auth.IssueToken("orchestrator", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := auth.IssueToken("orchestrator", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.False(t, resp.ExpiresAt.IsZero())

	claims, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "orchestrator", claims.ClientID)

	other := NewAuthService("orchestrator", "s3cret", "another-key")
	_, err = other.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = auth.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
