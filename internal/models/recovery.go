package models

import "time"

// RecoveryRecord — одна незавершённая попытка восстановления пароля.
// Token уникален и выдаётся один раз при создании; Code доставляется
// пользователю по внешнему каналу (email/SMS).
type RecoveryRecord struct {
	ID             int64     `json:"id"`
	UserID         int       `json:"user_id"`
	Token          string    `json:"token"`
	Code           string    `json:"-"`
	ExpirationTime time.Time `json:"expiration_date_time"`
	Attempts       int       `json:"attempts"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r *RecoveryRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpirationTime)
}
