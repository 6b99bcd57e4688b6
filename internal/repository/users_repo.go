package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/papertrade/papertrade/lib/errs"
	"gorm.io/gorm"
)

type UsersRepository interface {
	CreateUser(user *models.User) error
	GetUserByID(userID uuid.UUID) (*models.User, error)
	GetUserByName(name string) (*models.User, error)
	DeleteUserByID(userID uuid.UUID) error
}

type usersRepository struct {
	db *gorm.DB
}

func NewUsersRepository(db *gorm.DB) UsersRepository {
	return &usersRepository{db: db}
}

func (r *usersRepository) CreateUser(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		errorString := err.Error()
		if strings.Contains(errorString, "UNIQUE") || strings.Contains(errorString, "duplicate") {
			return errs.ErrAlreadyExists
		}

		return err
	}

	return nil
}

func (r *usersRepository) GetUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}
	return &user, nil
}

func (r *usersRepository) GetUserByName(name string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}
	return &user, nil
}

func (r *usersRepository) DeleteUserByID(userID uuid.UUID) error {
	result := r.db.Delete(&models.User{}, "id = ?", userID)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}

	return nil
}
