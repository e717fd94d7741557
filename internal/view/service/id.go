package service

import (
	"crypto/rand"
	"fmt"
)

const (
	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	idLength   = 15
	// Largest multiple of len(idAlphabet) that fits in a byte; bytes at or
	// above it are rejected so every symbol stays equally likely.
	idByteLimit = 256 - 256%len(idAlphabet)
)

// NewViewID returns a random 15 character id over [0-9A-Za-z].
func NewViewID() (string, error) {
	out := make([]byte, 0, idLength)
	buf := make([]byte, idLength*2)
	for len(out) < idLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate view id: %w", err)
		}
		for _, b := range buf {
			if int(b) >= idByteLimit {
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == idLength {
				break
			}
		}
	}
	return string(out), nil
}
