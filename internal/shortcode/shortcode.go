// Package shortcode handles short code generation and allocation.
package shortcode

import (
	"crypto/rand"
	"math/big"
)

// Alphabet is the set of characters short codes are drawn from. Ambiguous
// characters (0, 1, O, I, i, l, o) are excluded so codes stay easy to read
// aloud and retype.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz"

// Length is the fixed length of every short code, across both the base-link
// and variant namespaces.
const Length = 6

var inAlphabet [256]bool

func init() {
	for i := 0; i < len(Alphabet); i++ {
		inAlphabet[Alphabet[i]] = true
	}
}

// Generate creates a random short code. Each position is drawn uniformly and
// independently from Alphabet using crypto/rand.
func Generate() (string, error) {
	result := make([]byte, Length)
	max := big.NewInt(int64(len(Alphabet)))

	for i := 0; i < Length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = Alphabet[n.Int64()]
	}

	return string(result), nil
}

// IsWellFormed reports whether code is exactly Length characters and every
// character is a member of Alphabet. Used to reject malformed inbound codes
// before touching the store.
func IsWellFormed(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !inAlphabet[code[i]] {
			return false
		}
	}
	return true
}
