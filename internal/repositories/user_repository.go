package repositories

import (
	"database/sql"
	"fmt"

	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/models"
)

type UserRepository interface {
	GetByLogin(value string, method models.LoginMethod) (*models.User, error)
	GetByID(id int) (*models.User, error)
	UpdatePassword(userID int, passwordHash string) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

func (r *userRepository) GetByLogin(value string, method models.LoginMethod) (*models.User, error) {
	var column string
	switch method {
	case models.LoginMethodUsername:
		column = "username"
	case models.LoginMethodEmail:
		column = "email"
	case models.LoginMethodPhone:
		column = "phone"
	default:
		return nil, fmt.Errorf("user get by login: unsupported method %q", method)
	}

	q := fmt.Sprintf(`
		SELECT id, username, email, phone, password_hash
		FROM users
		WHERE %s = $1
	`, column)

	return r.scanUser(r.DB.QueryRow(q, value))
}

func (r *userRepository) GetByID(id int) (*models.User, error) {
	const q = `
		SELECT id, username, email, phone, password_hash
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.DB.QueryRow(q, id))
}

func (r *userRepository) UpdatePassword(userID int, passwordHash string) error {
	const q = `
		UPDATE users SET password_hash = $1 WHERE id = $2
	`
	if _, err := r.DB.Exec(q, passwordHash, userID); err != nil {
		return fmt.Errorf("user update password: %w", err)
	}
	return nil
}

func (r *userRepository) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var (
		email sql.NullString
		phone sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &email, &phone, &u.PasswordHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("user scan: %w", err)
	}
	if email.Valid {
		s := email.String
		u.Email = &s
	}
	if phone.Valid {
		s := phone.String
		u.Phone = &s
	}
	return u, nil
}
