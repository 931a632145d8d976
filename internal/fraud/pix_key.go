package fraud

import (
	"regexp"
	"strings"
)

// Structural pix key shapes: email, E.164-like phone (8-15 digits, optional
// leading +, first digit non-zero), or a bare CPF/CNPJ digit string.
var (
	emailKeyPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneKeyPattern = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)
	taxIDKeyPattern = regexp.MustCompile(`^\d{11}$|^\d{14}$`)
)

// ValidPixKey reports whether the key matches one of the accepted structural
// shapes. Empty or whitespace-only keys are always invalid.
func ValidPixKey(key string) bool {
	if strings.TrimSpace(key) == "" {
		return false
	}
	return emailKeyPattern.MatchString(key) ||
		phoneKeyPattern.MatchString(key) ||
		taxIDKeyPattern.MatchString(key)
}
