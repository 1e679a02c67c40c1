package models

type User struct {
	ID           int     `json:"id"`
	Username     string  `json:"username"`
	Email        *string `json:"email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	PasswordHash string  `json:"-"` // не отдаём наружу
}
