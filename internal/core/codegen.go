package core

// codegen.go derives natural-key codes for entities that need one and the
// file did not supply one.

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
)

// maxSuffixAttempts is how many numeric suffixes are tried before falling
// back to a random suffix, which guarantees termination.
const maxSuffixAttempts = 10

// GenerateCode derives a code from a display name: initials for multi-word
// names, a truncated prefix otherwise. The exists func must cover both the
// backing store and all codes generated earlier in the same execution;
// collisions get an incrementing numeric suffix, then a random one.
func GenerateCode(name string, exists func(string) bool) string {
	base := codeBase(name)
	if base == "" {
		base = "REC"
	}

	if !exists(base) {
		return base
	}
	for i := 1; i <= maxSuffixAttempts; i++ {
		candidate := base + strconv.Itoa(i)
		if !exists(candidate) {
			return candidate
		}
	}

	// Random suffix after bounded collisions. Looping until a free random
	// code appears terminates in practice immediately.
	for {
		buf := make([]byte, 3)
		_, _ = rand.Read(buf)
		candidate := base + strings.ToUpper(hex.EncodeToString(buf))
		if !exists(candidate) {
			return candidate
		}
	}
}

// codeBase builds the uppercased stem: first letters of words for
// multi-word names, the first three letters otherwise.
func codeBase(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	if len(words) == 0 {
		return ""
	}
	if len(words) == 1 {
		w := []rune(words[0])
		if len(w) > 3 {
			w = w[:3]
		}
		return strings.ToUpper(string(w))
	}

	var b strings.Builder
	for _, w := range words {
		r := []rune(w)
		b.WriteRune(unicode.ToUpper(r[0]))
	}
	return b.String()
}
