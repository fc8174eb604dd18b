package security

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	defaultMinPasswordLength   = 10
	defaultMinCharacterClasses = 3
	defaultMinZxcvbnScore      = 3
	maxZxcvbnScore             = 4
)

// Violation codes reported by PasswordPolicy.Evaluate.
const (
	ViolationTooShort         = "too_short"
	ViolationCharacterClasses = "character_classes"
	ViolationTooEasyToGuess   = "too_easy_to_guess"
)

// PasswordPolicyConfig tunes the rules applied to new local passwords.
// A zero value disables the corresponding rule.
type PasswordPolicyConfig struct {
	MinLength           int
	MinCharacterClasses int
	MinStrengthScore    int
}

// DefaultPasswordPolicyConfig returns the built-in policy thresholds.
func DefaultPasswordPolicyConfig() PasswordPolicyConfig {
	return PasswordPolicyConfig{
		MinLength:           defaultMinPasswordLength,
		MinCharacterClasses: defaultMinCharacterClasses,
		MinStrengthScore:    defaultMinZxcvbnScore,
	}
}

// PasswordViolation is one failed rule with a message safe to show to an administrator.
type PasswordViolation struct {
	Code    string
	Message string
}

// PasswordPolicy checks candidate passwords for account stores. Account attributes such as
// the username or email are fed to zxcvbn so passwords derived from them score low.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

// NewPasswordPolicy builds a policy from cfg.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	if cfg.MinStrengthScore > maxZxcvbnScore {
		cfg.MinStrengthScore = maxZxcvbnScore
	}
	return &PasswordPolicy{cfg: cfg}
}

// Check returns the message of every violated rule; nil means the password is acceptable.
func (p *PasswordPolicy) Check(password string, userInputs ...string) []string {
	violations := p.Evaluate(password, userInputs...)
	if len(violations) == 0 {
		return nil
	}
	messages := make([]string, 0, len(violations))
	for _, v := range violations {
		messages = append(messages, v.Message)
	}
	return messages
}

// Evaluate runs every enabled rule in order: length, character classes, then strength.
func (p *PasswordPolicy) Evaluate(password string, userInputs ...string) []PasswordViolation {
	if p == nil {
		return nil
	}

	var violations []PasswordViolation

	if min := p.cfg.MinLength; min > 0 && len([]rune(password)) < min {
		violations = append(violations, PasswordViolation{
			Code:    ViolationTooShort,
			Message: fmt.Sprintf("Passwords must be at least %d characters.", min),
		})
	}

	if min := p.cfg.MinCharacterClasses; min > 0 && characterClasses(password) < min {
		violations = append(violations, PasswordViolation{
			Code:    ViolationCharacterClasses,
			Message: fmt.Sprintf("Passwords must mix at least %d of upper case, lower case, digits and symbols.", min),
		})
	}

	if min := p.cfg.MinStrengthScore; min > 0 && zxcvbn.PasswordStrength(password, cleanInputs(userInputs)).Score < min {
		violations = append(violations, PasswordViolation{
			Code:    ViolationTooEasyToGuess,
			Message: "Passwords must not be easy to guess.",
		})
	}

	return violations
}

func characterClasses(password string) int {
	var upper, lower, digit, symbol int
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = 1
		case unicode.IsLower(r):
			lower = 1
		case unicode.IsDigit(r):
			digit = 1
		case unicode.IsSymbol(r), unicode.IsPunct(r):
			symbol = 1
		}
	}
	return upper + lower + digit + symbol
}

func cleanInputs(userInputs []string) []string {
	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if trimmed := strings.TrimSpace(in); trimmed != "" {
			inputs = append(inputs, trimmed)
		}
	}
	return inputs
}
