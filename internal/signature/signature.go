// Package signature authenticates webhook bodies with an HMAC-SHA256 shared secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// HeaderName is the request header that carries the hex encoded signature.
const HeaderName = "X-Signature"

var ErrEmptySecret = errors.New("signature secret must not be empty")

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	return &Verifier{secret: []byte(secret)}, nil
}

// Sign returns the lowercase hex HMAC-SHA256 of body.
func (v *Verifier) Sign(body []byte) string {
	return hex.EncodeToString(v.mac(body))
}

// Verify reports whether token is the hex HMAC-SHA256 of body. A missing, malformed or
// mismatching token all yield false.
func (v *Verifier) Verify(body []byte, token string) bool {
	if token == "" {
		return false
	}

	got, err := hex.DecodeString(token)
	if err != nil {
		return false
	}

	return hmac.Equal(v.mac(body), got)
}

func (v *Verifier) mac(body []byte) []byte {
	h := hmac.New(sha256.New, v.secret)
	h.Write(body)
	return h.Sum(nil)
}
