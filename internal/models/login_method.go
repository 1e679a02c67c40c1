package models

import "fmt"

// LoginMethod — каким идентификатором пользователь находит свой аккаунт.
type LoginMethod string

const (
	LoginMethodUsername LoginMethod = "username"
	LoginMethodEmail    LoginMethod = "email"
	LoginMethodPhone    LoginMethod = "phone"
)

func ParseLoginMethod(value string) (LoginMethod, error) {
	switch LoginMethod(value) {
	case LoginMethodUsername, LoginMethodEmail, LoginMethodPhone:
		return LoginMethod(value), nil
	}
	return "", fmt.Errorf("unknown login method: %q", value)
}

func (m LoginMethod) String() string {
	return string(m)
}
