package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/papertrade/papertrade/lib/errs"
	"gorm.io/gorm"
)

type SessionsRepository interface {
	StoreRefreshToken(session *models.Session) error
	GetByRefreshTokenHash(hash string) (*models.Session, error)
	DeleteByRefreshTokenHash(hash string) error
	DeleteExpired() error
	DeleteAllUserSessions(userID uuid.UUID) error
}

type sessionsRepository struct {
	db *gorm.DB
}

func NewSessionsRepository(db *gorm.DB) SessionsRepository {
	return &sessionsRepository{db: db}
}

func (r *sessionsRepository) StoreRefreshToken(session *models.Session) error {
	return r.db.Create(session).Error
}

func (r *sessionsRepository) GetByRefreshTokenHash(hash string) (*models.Session, error) {
	var session models.Session
	if err := r.db.First(&session, "refresh_token = ?", hash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionsRepository) DeleteByRefreshTokenHash(hash string) error {
	result := r.db.Delete(&models.Session{}, "refresh_token = ?", hash)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func (r *sessionsRepository) DeleteExpired() error {
	return r.db.Delete(&models.Session{}, "expires_at < ?", time.Now()).Error
}

func (r *sessionsRepository) DeleteAllUserSessions(userID uuid.UUID) error {
	return r.db.Delete(&models.Session{}, "user_id = ?", userID).Error
}
