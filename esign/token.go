package esign

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const tokenBytes = 32

// newToken returns an unguessable URL-safe token and the digest to store.
func newToken() (token, digest string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("esign: generate token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, digestToken(token), nil
}

func digestToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// tokenMatches compares the presented token against the stored digest in
// constant time.
func tokenMatches(token, digest string) bool {
	token = strings.TrimSpace(token)
	if token == "" || digest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(digestToken(token)), []byte(digest)) == 1
}
