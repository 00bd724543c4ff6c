package client

import (
	"crypto/rand"
	"math/big"
)

// NewCode returns a 6-character human-shareable join token. Collisions are
// handled by the caller retrying against store.ErrCodeTaken.
func NewCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
