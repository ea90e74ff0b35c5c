package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_IssueAndVerify(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	t.Run("round trip preserves identity", func(t *testing.T) {
		token, err := m.Issue("user-1", false)
		require.NoError(t, err)

		identity, err := m.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", identity.UserID)
		assert.False(t, identity.IsAdmin)
	})

	t.Run("admin flag survives the round trip", func(t *testing.T) {
		token, err := m.Issue("admin-1", true)
		require.NoError(t, err)

		identity, err := m.Verify(token)
		require.NoError(t, err)
		assert.True(t, identity.IsAdmin)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		_, err := m.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token signed with another secret is rejected", func(t *testing.T) {
		other := NewTokenManager("different-secret", time.Hour)
		token, err := other.Issue("user-1", false)
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		short := NewTokenManager("secret", time.Millisecond)
		token, err := short.Issue("user-1", false)
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		_, err = short.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewTokenManager_DefaultTTL(t *testing.T) {
	m := NewTokenManager("secret", 0)
	assert.Equal(t, 24*time.Hour, m.TTL())
}

func TestHashPassword(t *testing.T) {
	t.Run("hash verifies against original password", func(t *testing.T) {
		hash, err := HashPassword("hunter2")
		require.NoError(t, err)
		assert.NotEqual(t, "hunter2", hash)
		assert.True(t, CheckPassword(hash, "hunter2"))
	})

	t.Run("hash rejects other passwords", func(t *testing.T) {
		hash, err := HashPassword("hunter2")
		require.NoError(t, err)
		assert.False(t, CheckPassword(hash, "hunter3"))
	})

	t.Run("same password hashes differently each time", func(t *testing.T) {
		h1, err := HashPassword("hunter2")
		require.NoError(t, err)
		h2, err := HashPassword("hunter2")
		require.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})
}
