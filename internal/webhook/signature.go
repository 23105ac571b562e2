package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// SignaturePrefix is the scheme tag GitHub puts in front of the hex digest.
const SignaturePrefix = "sha256="

// Verifier checks X-Hub-Signature-256 headers against a shared secret.
type Verifier struct {
	secret []byte
	logger *slog.Logger
}

// NewVerifier creates a Verifier. An empty secret makes every check fail.
func NewVerifier(secret string, logger *slog.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), logger: logger}
}

// Verify reports whether header is the signature of the raw body.
func (v *Verifier) Verify(body []byte, header string) bool {
	if len(v.secret) == 0 {
		v.logger.Error("GitHub webhook secret not configured, rejecting delivery")
		return false
	}

	expected := Sign(v.secret, body)
	if !hmac.Equal([]byte(header), []byte(expected)) {
		v.logger.Warn("Invalid GitHub webhook signature")
		return false
	}
	return true
}

// Sign returns the header value GitHub would send for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
