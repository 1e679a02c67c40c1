package services

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/validation"
)

// AuthService — парольная политика: проверка силы нового пароля и
// хэширование перед сохранением.
type AuthService interface {
	HashPassword(password string) (string, error)
	ValidatePassword(password string) string
}

type authService struct {
	rule validation.PasswordRule
}

func NewAuthService(rule validation.PasswordRule) AuthService {
	return &authService{rule: rule}
}

func (s *authService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}
	return string(hash), nil
}

// ValidatePassword — возвращает код причины либо пустую строку.
func (s *authService) ValidatePassword(password string) string {
	return s.rule.Validate(password)
}
