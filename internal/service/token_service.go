package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/config"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/papertrade/papertrade/internal/repository"
	"github.com/papertrade/papertrade/lib/errs"
	"github.com/papertrade/papertrade/lib/hashcrypto"
	"gorm.io/gorm"
)

type TokenService interface {
	GenerateTokens(userID uuid.UUID, userName string) (accessToken string, refreshToken string, err error)
	RefreshToken(refreshToken string) (newAccessToken string, newRefreshToken string, err error)
	Logout(refreshToken string) error
	DeleteExpired() error
}

type tokenService struct {
	sessionsRepo repository.SessionsRepository
	usersRepo    repository.UsersRepository
	db           *gorm.DB
	cfg          config.SecConfig
}

func NewTokenService(sessionsRepo repository.SessionsRepository, usersRepo repository.UsersRepository, db *gorm.DB, cfg config.SecConfig) TokenService {
	return &tokenService{
		sessionsRepo: sessionsRepo,
		usersRepo:    usersRepo,
		db:           db,
		cfg:          cfg,
	}
}

func (s *tokenService) GenerateTokens(userID uuid.UUID, userName string) (string, string, error) {
	return s.generateTokensInTx(userID, userName, s.sessionsRepo)
}

// RefreshToken rotates the session: the presented refresh token is consumed
// and a fresh pair is issued, all inside one transaction.
func (s *tokenService) RefreshToken(currentRefreshToken string) (string, string, error) {
	var newAccessToken, newRefreshToken string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		txSessionsRepo := repository.NewSessionsRepository(tx)
		txUsersRepo := repository.NewUsersRepository(tx)

		hashedToken := hashcrypto.HashToken(currentRefreshToken)
		session, err := txSessionsRepo.GetByRefreshTokenHash(hashedToken)
		if err != nil {
			return errs.ErrInvalidToken
		}

		if time.Now().After(session.ExpiresAt) {
			return errs.ErrInvalidToken
		}

		user, err := txUsersRepo.GetUserByID(session.UserID)
		if err != nil {
			return fmt.Errorf("inconsistent state: session found but user not: %w", err)
		}

		if err := txSessionsRepo.DeleteByRefreshTokenHash(hashedToken); err != nil {
			return fmt.Errorf("failed to delete old session: %w", err)
		}

		newAccessToken, newRefreshToken, err = s.generateTokensInTx(user.ID, user.Name, txSessionsRepo)
		if err != nil {
			return fmt.Errorf("failed to generate new tokens: %w", err)
		}

		return nil
	})

	if err != nil {
		return "", "", err
	}

	return newAccessToken, newRefreshToken, nil
}

func (s *tokenService) generateTokensInTx(userID uuid.UUID, userName string, sessionsRepo repository.SessionsRepository) (string, string, error) {
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"name": userName,
		"exp":  time.Now().Add(s.cfg.AccessTokenTTL).Unix(),
		"iat":  time.Now().Unix(),
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedAccessToken, err := accessToken.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := hashcrypto.GenerateRandomString(32)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	session := &models.Session{
		UserID:       userID,
		RefreshToken: hashcrypto.HashToken(refreshToken),
		ExpiresAt:    time.Now().Add(s.cfg.RefreshTokenTTL),
	}

	if err := sessionsRepo.StoreRefreshToken(session); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token session: %w", err)
	}

	return signedAccessToken, refreshToken, nil
}

func (s *tokenService) Logout(refreshToken string) error {
	hashedToken := hashcrypto.HashToken(refreshToken)

	if err := s.sessionsRepo.DeleteByRefreshTokenHash(hashedToken); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	return nil
}

func (s *tokenService) DeleteExpired() error {
	return s.sessionsRepo.DeleteExpired()
}
