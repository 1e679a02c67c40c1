package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/models"
)

// ErrDuplicateToken — нарушение уникальности token при вставке.
var ErrDuplicateToken = errors.New("recovery token already exists")

type RecoveryRepository interface {
	Create(rec *models.RecoveryRecord) error
	GetByToken(token string) (*models.RecoveryRecord, error)
	IncrementAttempts(id int64) (int, error)
	Delete(id int64) error
}

type recoveryRepository struct {
	DB *sql.DB
}

func NewRecoveryRepository(db *sql.DB) RecoveryRepository {
	return &recoveryRepository{DB: db}
}

// Create — вставка новой записи. Уникальность токена обеспечивает
// констрейнт БД; конфликт поднимаем как ErrDuplicateToken.
func (r *recoveryRepository) Create(rec *models.RecoveryRecord) error {
	const q = `
		INSERT INTO user_recovery (user_id, token, code, expiration_date_time, attempts)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id, created_at
	`
	err := r.DB.QueryRow(q, rec.UserID, rec.Token, rec.Code, rec.ExpirationTime).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateToken
		}
		return fmt.Errorf("recovery create: %w", err)
	}
	return nil
}

func (r *recoveryRepository) GetByToken(token string) (*models.RecoveryRecord, error) {
	const q = `
		SELECT id, user_id, token, code, expiration_date_time, attempts, created_at
		FROM user_recovery
		WHERE token = $1
	`
	rec := &models.RecoveryRecord{}
	err := r.DB.QueryRow(q, token).Scan(
		&rec.ID, &rec.UserID, &rec.Token, &rec.Code,
		&rec.ExpirationTime, &rec.Attempts, &rec.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("recovery get by token: %w", err)
	}
	return rec, nil
}

// IncrementAttempts — атомарный +1, без read-modify-write, чтобы не
// терять обновления при параллельных подтверждениях.
func (r *recoveryRepository) IncrementAttempts(id int64) (int, error) {
	const q = `
		UPDATE user_recovery
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRow(q, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("recovery increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *recoveryRepository) Delete(id int64) error {
	if _, err := r.DB.Exec(`DELETE FROM user_recovery WHERE id = $1`, id); err != nil {
		return fmt.Errorf("recovery delete: %w", err)
	}
	return nil
}
