package services

import (
	"strings"
	"testing"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestGenerateConfirmationCode(t *testing.T) {
	code, hash, err := GenerateConfirmationCode()
	require.NoError(t, err)
	require.Len(t, code, codeLength)
	require.NotContains(t, hash, code)

	for _, r := range code {
		require.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected character %q", r)
	}

	require.NoError(t, VerifyConfirmationCode(hash, code))
	require.ErrorIs(t, VerifyConfirmationCode(hash, "XXXXXXXX"), apperr.ErrInvalidConfirmationCode)
	require.ErrorIs(t, VerifyConfirmationCode(hash, ""), apperr.ErrInvalidConfirmationCode)
}

func TestGenerateConfirmationCodeUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, _, err := GenerateConfirmationCode()
		require.NoError(t, err)
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}
