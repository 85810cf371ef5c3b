package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerator_FixedLength(t *testing.T) {
	gen := NewGenerator()

	secret, err := gen.Generate()
	require.NoError(t, err)
	require.Len(t, secret, DefaultLength)
}

func TestGenerator_UsesConfiguredAlphabet(t *testing.T) {
	gen := NewGenerator(WithLength(64), WithAlphabet("ab"))

	secret, err := gen.Generate()
	require.NoError(t, err)
	require.Len(t, secret, 64)
	for _, r := range secret {
		require.Contains(t, "ab", string(r))
	}
}

func TestGenerator_DoesNotRepeatAcrossCalls(t *testing.T) {
	gen := NewGenerator()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		secret, err := gen.Generate()
		require.NoError(t, err)
		require.False(t, seen[secret], "secret reused: %s", secret)
		seen[secret] = true
	}
}

func TestGenerator_DefaultAlphabetIsMixed(t *testing.T) {
	gen := NewGenerator(WithLength(512))

	secret, err := gen.Generate()
	require.NoError(t, err)
	require.True(t, strings.ContainsAny(secret, "0123456789"))
	require.True(t, strings.ContainsAny(secret, "abcdefghijklmnopqrstuvwxyz"))
	require.True(t, strings.ContainsAny(secret, "!@#$%&*"))
}
