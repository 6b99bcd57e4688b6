package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/papertrade/papertrade/internal/repository"
	"github.com/papertrade/papertrade/lib/errs"
	"github.com/papertrade/papertrade/lib/hashcrypto"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UsersService interface {
	Register(ctx context.Context, name, password string) (*models.User, error)
	Login(ctx context.Context, name, password string) (*models.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type usersService struct {
	usersRepo    repository.UsersRepository
	db           *gorm.DB
	startingCash decimal.Decimal
}

func NewUsersService(usersRepo repository.UsersRepository, db *gorm.DB, startingCash decimal.Decimal) UsersService {
	return &usersService{
		usersRepo:    usersRepo,
		db:           db,
		startingCash: startingCash,
	}
}

// Register creates the account and seeds its portfolio with the starting cash
// balance in one transaction, so a user never exists without a portfolio.
func (s *usersService) Register(ctx context.Context, name, password string) (*models.User, error) {
	if name == "" || password == "" {
		return nil, fmt.Errorf("name and password are required: %w", errs.ErrInvalidInput)
	}

	_, err := s.usersRepo.GetUserByName(name)
	if err == nil {
		return nil, errs.ErrAlreadyExists
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := hashcrypto.HashPwd([]byte(password))
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     name,
		Password: string(hashedPassword),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txUsersRepo := repository.NewUsersRepository(tx)
		txPortfoliosRepo := repository.NewPortfoliosRepository(tx)

		if err := txUsersRepo.CreateUser(user); err != nil {
			return err
		}

		return txPortfoliosRepo.CreatePortfolio(&models.Portfolio{
			UserID:      user.ID,
			CashBalance: s.startingCash,
		})
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *usersService) Login(ctx context.Context, name, password string) (*models.User, error) {
	user, err := s.usersRepo.GetUserByName(name)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, errs.ErrNotFound
	}

	return user, nil
}

func (s *usersService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.usersRepo.GetUserByID(userID)
}

// DeleteUser removes the account and all of its sessions together, so a
// deleted user's refresh tokens stop working immediately.
func (s *usersService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewSessionsRepository(tx).DeleteAllUserSessions(userID); err != nil {
			return err
		}
		return repository.NewUsersRepository(tx).DeleteUserByID(userID)
	})
}
