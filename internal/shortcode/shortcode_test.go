package shortcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphabet(t *testing.T) {
	t.Run("contains no ambiguous characters", func(t *testing.T) {
		for _, c := range "01OIilo" {
			assert.NotContains(t, Alphabet, string(c))
		}
	})

	t.Run("contains no duplicates", func(t *testing.T) {
		seen := make(map[rune]bool)
		for _, c := range Alphabet {
			assert.False(t, seen[c], "duplicate character %q", c)
			seen[c] = true
		}
	})
}

func TestGenerate(t *testing.T) {
	t.Run("produces codes of the fixed length", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			code, err := Generate()
			require.NoError(t, err)
			assert.Len(t, code, Length)
		}
	})

	t.Run("only uses alphabet characters", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			code, err := Generate()
			require.NoError(t, err)
			for _, c := range code {
				assert.Contains(t, Alphabet, string(c))
			}
		}
	})

	t.Run("produces distinct codes", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			code, err := Generate()
			require.NoError(t, err)
			seen[code] = true
		}
		// Collisions in 100 draws from 55^6 codes are vanishingly unlikely.
		assert.Greater(t, len(seen), 95)
	})
}

func TestIsWellFormed(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"valid lowercase code", "abcdef", true},
		{"valid mixed code", "aB3xY9", true},
		{"valid digit-heavy code", "234567", true},
		{"empty string", "", false},
		{"too short", "abc", false},
		{"too long", "abcdefg", false},
		{"contains zero", "abc0ef", false},
		{"contains capital O", "abcOef", false},
		{"contains capital I", "abcIef", false},
		{"contains lowercase l", "abclef", false},
		{"contains lowercase o", "abcoef", false},
		{"contains hyphen", "abc-ef", false},
		{"contains slash", "abc/ef", false},
		{"contains space", "abc ef", false},
		{"contains non-ascii", "abcdé", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWellFormed(tt.code))
		})
	}
}

func TestIsWellFormedAcceptsGenerated(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := Generate()
		require.NoError(t, err)
		assert.True(t, IsWellFormed(code), "generated code %q should be well-formed", code)
	}
}

func BenchmarkGenerate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Generate(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIsWellFormed(b *testing.B) {
	code := strings.Repeat("a", Length)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		IsWellFormed(code)
	}
}
