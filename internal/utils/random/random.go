package random

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Hex generates a cryptographically secure random hex string.
// The output length is twice the input length (each byte = 2 hex chars).
func Hex(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// LocalID generates an identifier of the form {tag}_{timestampBase36}_{randomHex8}.
// The timestamp is in milliseconds.
func LocalID(tag string, now time.Time) (string, error) {
	suffix, err := Hex(4)
	if err != nil {
		return "", err
	}
	return tag + "_" + strconv.FormatInt(now.UnixMilli(), 36) + "_" + suffix, nil
}
