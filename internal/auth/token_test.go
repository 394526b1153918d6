package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wasabi/internal/apperr"
)

func TestTokenIssueAndValidate(t *testing.T) {
	m := NewTokenManager([]byte("test-secret"), time.Hour)

	token, expiresAt, err := m.Issue("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Validate(token, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
}

func TestTokenSubjectMismatch(t *testing.T) {
	m := NewTokenManager([]byte("test-secret"), time.Hour)

	token, _, err := m.Issue("alice")
	require.NoError(t, err)

	_, err = m.Validate(token, "bob")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.TypeSubjectMismatch, e.Type)
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewTokenManager([]byte("right-secret"), time.Hour)
	verifier := NewTokenManager([]byte("wrong-secret"), time.Hour)

	token, _, err := issuer.Issue("alice")
	require.NoError(t, err)

	_, err = verifier.Validate(token, "alice")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.TypeTokenInvalid, e.Type)
}

func TestTokenMalformed(t *testing.T) {
	m := NewTokenManager([]byte("test-secret"), time.Hour)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := m.Validate(token, "alice")
		require.Error(t, err)
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.TypeTokenInvalid, e.Type)
	}
}

func TestTokenExpiry(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Minute

	m := NewTokenManager([]byte("test-secret"), ttl)
	m.now = func() time.Time { return issuedAt }

	token, expiresAt, err := m.Issue("alice")
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(ttl), expiresAt)

	// valid strictly before expiry
	m.now = func() time.Time { return expiresAt.Add(-time.Second) }
	_, err = m.Validate(token, "alice")
	require.NoError(t, err)

	// at the exact expiry instant the token is already expired
	m.now = func() time.Time { return expiresAt }
	_, err = m.Validate(token, "alice")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.TypeTokenExpired, e.Type)

	// and stays expired afterwards
	m.now = func() time.Time { return expiresAt.Add(time.Hour) }
	_, err = m.Validate(token, "alice")
	require.Error(t, err)
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.TypeTokenExpired, e.Type)
}
