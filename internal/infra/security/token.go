package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const securityStampBytes = 24

// NewSecurityStamp returns a fresh opaque stamp. Stamps are compared for equality only.
func NewSecurityStamp() (string, error) {
	buf := make([]byte, securityStampBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate security stamp: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
