package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"unicode"

	passwordvalidator "github.com/wagslane/go-password-validator"
	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost           = 12
	VerificationTokenLen = 32 // 256 bits
	MinPasswordLen       = 8
	MaxPasswordLen       = 128

	// Entropy floor in bits; roughly a 10-character mixed-charset password.
	minPasswordEntropy = 60
)

// PasswordValidationError holds per-rule failures. Error() is deliberately
// generic so specific requirements are never echoed back to callers.
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	return "invalid password"
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// GenerateVerificationToken returns an opaque URL-safe token used to prove
// control of a registered email address.
func GenerateVerificationToken() (string, error) {
	bytes := make([]byte, VerificationTokenLen)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// ValidatePassword enforces length, character class, and entropy requirements.
func ValidatePassword(password string) error {
	errs := make([]string, 0)

	if len(password) < MinPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		errs = append(errs, "must contain at least one uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "must contain at least one digit")
	}

	// Entropy check catches long-but-predictable passwords ("aaaaaaaaA1")
	// that pass the character class rules.
	if err := passwordvalidator.Validate(password, minPasswordEntropy); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return &PasswordValidationError{Errors: errs}
	}

	return nil
}
