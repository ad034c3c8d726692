package crypto

import (
	"crypto/rand"
	"math/big"
)

// ShareTokenLen is the length of generated public share tokens.
const ShareTokenLen = 24

const shareAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ShareToken returns a random URL-safe token of ShareTokenLen alphanumeric characters.
func ShareToken() (string, error) {
	max := big.NewInt(int64(len(shareAlphabet)))
	b := make([]byte, ShareTokenLen)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = shareAlphabet[n.Int64()]
	}
	return string(b), nil
}

// IsShareToken reports whether s has the shape of a generated share token.
func IsShareToken(s string) bool {
	if len(s) != ShareTokenLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
