package security

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/nbutton23/zxcvbn-go"
)

// Master password length bounds, in characters.
const (
	MinMasterPasswordLength = 8
	MaxMasterPasswordLength = 128
)

// MasterPasswordReport is the advice shown when a vault password is chosen.
// Only Valid is binding; everything else is a recommendation.
type MasterPasswordReport struct {
	Valid     bool             `json:"valid"`
	Strength  PasswordStrength `json:"strength"`
	Score     int              `json:"score"`
	CrackTime string           `json:"crack_time"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// ValidateMasterPassword checks the length bounds and estimates how guessable
// the password is. userInputs are words the estimator should treat as known
// to an attacker, such as the user name.
func ValidateMasterPassword(password string, userInputs ...string) *MasterPasswordReport {
	report := &MasterPasswordReport{Valid: true, Strength: PasswordWeak}

	length := utf8.RuneCountInString(password)
	if length < MinMasterPasswordLength {
		report.Valid = false
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Password must be at least %d characters", MinMasterPasswordLength))
		return report
	}
	if length > MaxMasterPasswordLength {
		report.Valid = false
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Password must be at most %d characters", MaxMasterPasswordLength))
		return report
	}

	estimate := zxcvbn.PasswordStrength(password, userInputs)
	report.Score = estimate.Score
	report.CrackTime = estimate.CrackTimeDisplay

	report.Strength = calculatePasswordStrength(password)
	if capped := scoreStrength(estimate.Score); capped < report.Strength {
		report.Strength = capped
	}

	if estimate.Score < 3 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Password is easy to guess (estimated crack time: %s)", estimate.CrackTimeDisplay))
	}
	if length < 12 {
		report.Warnings = append(report.Warnings,
			"Longer passwords (12+ characters) are more secure")
	}
	if characterClasses(password) < 2 {
		report.Warnings = append(report.Warnings,
			"Consider using a mix of letters, numbers, and symbols, or a long passphrase")
	}

	return report
}

// scoreStrength maps a zxcvbn score (0-4) onto the strength scale.
func scoreStrength(score int) PasswordStrength {
	switch {
	case score >= 4:
		return PasswordStrong
	case score == 3:
		return PasswordGood
	case score == 2:
		return PasswordFair
	default:
		return PasswordWeak
	}
}

func characterClasses(password string) int {
	var upper, lower, digit, other bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	n := 0
	for _, b := range []bool{upper, lower, digit, other} {
		if b {
			n++
		}
	}
	return n
}
