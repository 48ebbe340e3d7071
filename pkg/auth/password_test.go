package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("pw1", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, "pw1", hash)
	assert.True(t, CheckPassword(hash, "pw1"))
	assert.False(t, CheckPassword(hash, "pw2"))
	assert.False(t, CheckPassword(hash, "PW1"))
	assert.False(t, CheckPassword(hash, ""))
}

func TestHashPassword_Salted(t *testing.T) {
	a, err := HashPassword("same", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := HashPassword("same", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCheckPassword_PlaintextStoredValueNeverMatches(t *testing.T) {
	assert.False(t, CheckPassword("pw1", "pw1"))
}
