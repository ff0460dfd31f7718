package runner

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxInputSize is 4KB (conservative default).
const DefaultMaxInputSize = 4096

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer bounds and cleans user input. The zero value allows DefaultMaxInputSize bytes.
type Sanitizer struct {
	MaxSize int
}

// NewSanitizer returns a Sanitizer allowing maxSize bytes; maxSize <= 0 keeps the default.
func NewSanitizer(maxSize int) Sanitizer {
	return Sanitizer{MaxSize: maxSize}
}

func (s Sanitizer) limit() int {
	if s.MaxSize > 0 {
		return s.MaxSize
	}
	return DefaultMaxInputSize
}

// SanitizeInput applies the default Sanitizer.
func SanitizeInput(input string) (string, error) {
	return Sanitizer{}.Sanitize(input)
}

// Sanitize cleans user input by enforcing the size limit,
// validating UTF-8, and stripping dangerous control characters.
func (s Sanitizer) Sanitize(input string) (string, error) {
	// 1. Enforce Size Limit
	limit := s.limit()
	if len(input) > limit {
		// We explicitly reject rather than truncate to ensure deterministic state.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	// 2. Validate UTF-8
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// 3. Strip Control Characters
	// We preserve:
	// - Newline (\n)
	// - Tab (\t)
	// - Carriage Return (\r) - treated as whitespace
	// We remove:
	// - ANSI codes (ESC), NULL, BEL, etc.
	// This prevents log poisoning and terminal corruption.

	// Fast path: if no control chars, return as is.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	// Slow path: build clean string
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}
