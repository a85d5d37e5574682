package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

const (
	StateCookieName = "oauth_state"
	StateTTL        = 10 * time.Minute
)

// NewState returns a random value to round-trip through the provider for CSRF protection.
func NewState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// StateMatches compares the state echoed by the provider with the one issued.
func StateMatches(issued, returned string) bool {
	if issued == "" || returned == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(issued), []byte(returned)) == 1
}
