package authentication

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const refreshSecretBytes = 32

var ErrMalformedRefreshToken = errors.New("malformed refresh token")

// tokenHasher derives the stored record id from the client-held secret, so a
// leaked table does not yield usable refresh tokens.
type tokenHasher struct {
	key []byte
}

func newTokenHasher(refreshSecret string) tokenHasher {
	return tokenHasher{key: []byte(refreshSecret)}
}

func (h tokenHasher) recordID(secret string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// newSecret returns a fresh client secret and the record id it maps to.
func (h tokenHasher) newSecret() (secret, id string, err error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)
	return secret, h.recordID(secret), nil
}

// checkRefreshSecret is the structural check separating a malformed token
// from a well-formed but unknown one.
func checkRefreshSecret(raw string) error {
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil || len(decoded) != refreshSecretBytes {
		return ErrMalformedRefreshToken
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
