package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheck(t *testing.T) {
	hash, err := HashPassword("123456")
	require.NoError(t, err)
	assert.True(t, CheckPassword("123456", hash))
	assert.False(t, CheckPassword("654321", hash))
	assert.False(t, CheckPassword("123456", "not-a-hash"))
}

func TestHashRejectsShortCodes(t *testing.T) {
	_, err := HashPassword("12")
	assert.ErrorIs(t, err, ErrCodeTooShort)
}
