// Package shortcode holds the code alphabet and the pure helpers around it:
// validation, sanitization of user-preferred codes, and random generation.
package shortcode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet is the full set of characters a code may contain. It has exactly
// 64 entries, so a random byte masked to 6 bits indexes it without bias.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_-"

// GeneratedLength is the length of generated codes when the caller does not
// override it.
const GeneratedLength = 6

// Valid reports whether code is non-empty and drawn entirely from Alphabet.
func Valid(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !allowed(code[i]) {
			return false
		}
	}
	return true
}

// Sanitize strips every character outside the alphabet from a user-preferred
// code, keeping case. The result may be empty, which callers treat as an
// invalid preference rather than "no preference".
func Sanitize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if allowed(raw[i]) {
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

// Generate returns a random code of length n drawn from Alphabet.
func Generate(n int) (string, error) {
	if n <= 0 {
		n = GeneratedLength
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("shortcode: read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = Alphabet[b&0x3F]
	}
	return string(buf), nil
}

func allowed(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c == '_' || c == '-':
		return true
	}
	return false
}
