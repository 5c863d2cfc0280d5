package platform

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns a record id.
func NewID() string {
	return uuid.New().String()
}

// NewVerificationToken returns an opaque ownership token with 128 bits of entropy.
func NewVerificationToken(platformName string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	return platformName + "-verify=" + hex.EncodeToString(b)
}
