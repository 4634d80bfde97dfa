package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashOrRead accepts either a plaintext password or an already-hashed
// bcrypt digest, so ADMIN_PASSWORD can carry either form.
func HashOrRead(password string) ([]byte, error) {
	if strings.HasPrefix(password, "$2a$") || strings.HasPrefix(password, "$2b$") || strings.HasPrefix(password, "$2y$") {
		return []byte(password), nil
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
