// Package security provides strength advice and a health report for vault secrets.
package security

import (
	"strings"
	"unicode/utf8"

	"github.com/forest6511/passlocal/pkg/vault"
)

// PasswordStrength represents the strength level of a password or API key.
type PasswordStrength int

const (
	// PasswordWeak indicates an insecure value (less than 8 chars for passwords, 16 for API keys).
	PasswordWeak PasswordStrength = iota
	// PasswordFair indicates a minimally acceptable value.
	PasswordFair
	// PasswordGood indicates a good value.
	PasswordGood
	// PasswordStrong indicates a strong value.
	PasswordStrong
)

// String returns a human-readable representation of the strength.
func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "Weak"
	case PasswordFair:
		return "Fair"
	case PasswordGood:
		return "Good"
	case PasswordStrong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// Points returns the score points for this strength level.
// Used in the strength component: Weak=0, Fair=8, Good=17, Strong=25.
func (s PasswordStrength) Points() int {
	switch s {
	case PasswordWeak:
		return 0
	case PasswordFair:
		return 8
	case PasswordGood:
		return 17
	case PasswordStrong:
		return 25
	default:
		return 0
	}
}

// ValueKind tells how a secret value should be judged.
type ValueKind string

const (
	// KindPassword is a human-chosen password.
	KindPassword ValueKind = "password"
	// KindAPIKey is a machine-generated key or token.
	KindAPIKey ValueKind = "api_key"
)

var apiKeyHints = []string{"token", "api", "key", "bearer", "access"}

// ClassifySecret guesses the kind of a secret from its key label, then its name.
func ClassifySecret(s vault.Secret) ValueKind {
	for _, label := range []string{s.Key, s.Name} {
		lower := strings.ToLower(label)
		for _, hint := range apiKeyHints {
			if strings.Contains(lower, hint) {
				return KindAPIKey
			}
		}
	}
	return KindPassword
}

// CalculateStrength rates a value. API keys use entropy-oriented length
// thresholds; everything else uses the length-first password rules.
func CalculateStrength(value string, kind ValueKind) PasswordStrength {
	if kind == KindAPIKey {
		return calculateAPIKeyStrength(value)
	}
	return calculatePasswordStrength(value)
}

// calculatePasswordStrength evaluates human-created passwords.
// Length is the primary factor per NIST SP 800-63B; composition rules are not scored.
func calculatePasswordStrength(value string) PasswordStrength {
	length := utf8.RuneCountInString(value)

	switch {
	case length >= 20:
		return PasswordStrong
	case length >= 14:
		return PasswordGood
	case length >= 8:
		return PasswordFair
	default:
		return PasswordWeak
	}
}

// calculateAPIKeyStrength evaluates machine-generated tokens.
// For random strings, length directly correlates with entropy:
// - 32+ chars (~128 bits for alphanumeric): Strong
// - 20+ chars (~80 bits): Good
// - 16+ chars (~64 bits): Fair
func calculateAPIKeyStrength(value string) PasswordStrength {
	length := utf8.RuneCountInString(value)

	switch {
	case length >= 32:
		return PasswordStrong
	case length >= 20:
		return PasswordGood
	case length >= 16:
		return PasswordFair
	default:
		return PasswordWeak
	}
}
