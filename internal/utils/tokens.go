package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NewRecoveryToken — непредсказуемый токен записи восстановления.
// 48 байт в hex = 96 символов (под колонку token VARCHAR(96)).
func NewRecoveryToken() (string, error) {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewRecoveryCode — короткий числовой код заданной длины.
// Источник — crypto/rand, чтобы код нельзя было угадать.
func NewRecoveryCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
