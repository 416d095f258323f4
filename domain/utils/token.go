package utils

import (
	"crypto/rand"
	"fmt"
)

// TokenAlphabet is the character set accepted by deep-link start payloads
const TokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-"

const (
	DefaultTokenLength = 16
	MinTokenLength     = 8
	MaxTokenLength     = 64
)

// largest multiple of the alphabet size that fits in a byte; bytes at or
// above it are rejected so every character is equally likely
var tokenRejectThreshold = byte(256 - 256%len(TokenAlphabet))

// GenerateToken returns a cryptographically random token of the given length
func GenerateToken(length int) (string, error) {
	if length < MinTokenLength || length > MaxTokenLength {
		return "", fmt.Errorf("token length %d outside [%d, %d]", length, MinTokenLength, MaxTokenLength)
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= tokenRejectThreshold {
				continue
			}
			out = append(out, TokenAlphabet[int(b)%len(TokenAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// IsValidToken checks length bounds and alphabet
func IsValidToken(token string) bool {
	if len(token) < MinTokenLength || len(token) > MaxTokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}
