package utils

import (
	"golang.org/x/crypto/bcrypt"
)

const passwordCost = 10

// PasswordHash returns password unchanged when it already is a bcrypt hash, otherwise its bcrypt hash.
func PasswordHash(password string) ([]byte, error) {
	if _, err := bcrypt.Cost([]byte(password)); err == nil {
		return []byte(password), nil
	}
	return bcrypt.GenerateFromPassword([]byte(password), passwordCost)
}
