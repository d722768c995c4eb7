// Package signature implements webhook payload signing and verification.
//
// The commerce platform signs each delivery as base64(HMAC-SHA256(body))
// using the subscription's shared secret. Verification must run over the
// exact raw request body, before any JSON decoding.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Sign computes the signature for payload using the shared secret.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Verify reports whether sig is a valid signature for payload. The
// comparison is constant time.
func Verify(secret string, payload []byte, sig string) bool {
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(sig))
}
