package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const HeaderCSRFToken = "X-CSRF-Token"

// NewCSRFToken returns "<nonce>.<mac>" where mac is the HMAC-SHA256 of the
// nonce under secret.
func NewCSRFToken(secret string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf nonce: %w", err)
	}
	nonce := base64.RawURLEncoding.EncodeToString(buf)
	return nonce + "." + csrfMAC(secret, nonce), nil
}

func ValidCSRFToken(secret string, token string) bool {
	nonce, mac, ok := strings.Cut(token, ".")
	if !ok || nonce == "" || mac == "" {
		return false
	}
	return hmac.Equal([]byte(mac), []byte(csrfMAC(secret, nonce)))
}

func csrfMAC(secret string, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
