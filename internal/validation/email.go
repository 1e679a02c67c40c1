package validation

import (
	"net/mail"
	"strings"
)

// EmailRule — проверка и нормализация email. Clean применяется и к
// присланному значению, и к сохранённому, прежде чем их сравнивать.
type EmailRule struct{}

func (EmailRule) IsValid(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return false
	}
	// mail.ParseAddress принимает имена вида "Name <a@b>", нам нужен голый адрес
	if addr.Address != value {
		return false
	}
	return strings.Contains(strings.SplitN(value, "@", 2)[1], ".")
}

func (EmailRule) Clean(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
