package lyralink

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Alphabet holds the symbols short codes are drawn from.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// RandomCode draws a code of length n, each symbol uniformly and
// independently from Alphabet.
func RandomCode(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// IsCode reports whether s could be a short code.
func IsCode(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(Alphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
