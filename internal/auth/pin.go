package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPIN hashes a PIN with a fresh salt at the configured cost.
func HashPIN(pin string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePIN verifies a PIN against its hashed value. It returns nil on a match.
func ComparePIN(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// MatchesPIN reports whether plain matches hashed. Errors other than a
// mismatch (corrupt hash) are returned to the caller.
func MatchesPIN(hashed, plain string) (bool, error) {
	err := ComparePIN(hashed, plain)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// IsNumeric reports whether pin consists only of ASCII digits.
func IsNumeric(pin string) bool {
	if pin == "" {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
