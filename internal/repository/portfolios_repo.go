package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/papertrade/papertrade/lib/errs"
	"gorm.io/gorm"
)

type PortfoliosRepository interface {
	CreatePortfolio(portfolio *models.Portfolio) error
	GetPortfolio(userID uuid.UUID) (*models.Portfolio, error)
	SavePortfolio(portfolio *models.Portfolio) error

	AddHolding(holding *models.Holding) error
	GetHolding(userID uuid.UUID, coinID string) (*models.Holding, error)
	ListHoldings(userID uuid.UUID) ([]models.Holding, error)
	SaveHolding(holding *models.Holding) error
	DeleteHolding(userID uuid.UUID, coinID string) error
}

type portfoliosRepository struct {
	db *gorm.DB
}

func NewPortfoliosRepository(db *gorm.DB) PortfoliosRepository {
	return &portfoliosRepository{db: db}
}

func (r *portfoliosRepository) CreatePortfolio(portfolio *models.Portfolio) error {
	if err := r.db.Create(portfolio).Error; err != nil {
		errorString := err.Error()
		if strings.Contains(errorString, "UNIQUE") || strings.Contains(errorString, "duplicate") {
			return errs.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *portfoliosRepository) GetPortfolio(userID uuid.UUID) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	if err := r.db.First(&portfolio, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return &portfolio, nil
}

func (r *portfoliosRepository) SavePortfolio(portfolio *models.Portfolio) error {
	return r.db.Save(portfolio).Error
}

func (r *portfoliosRepository) AddHolding(holding *models.Holding) error {
	if err := r.db.Create(holding).Error; err != nil {
		errorString := err.Error()
		if strings.Contains(errorString, "UNIQUE") || strings.Contains(errorString, "duplicate") {
			return errs.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *portfoliosRepository) GetHolding(userID uuid.UUID, coinID string) (*models.Holding, error) {
	var holding models.Holding

	if err := r.db.Where("user_id = ? AND coin_id = ?", userID, coinID).First(&holding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return &holding, nil
}

func (r *portfoliosRepository) ListHoldings(userID uuid.UUID) ([]models.Holding, error) {
	var holdings []models.Holding
	if err := r.db.Where("user_id = ?", userID).Find(&holdings).Error; err != nil {
		return nil, err
	}
	return holdings, nil
}

func (r *portfoliosRepository) SaveHolding(holding *models.Holding) error {
	return r.db.Save(holding).Error
}

func (r *portfoliosRepository) DeleteHolding(userID uuid.UUID, coinID string) error {
	result := r.db.Where("user_id = ? AND coin_id = ?", userID, coinID).Delete(&models.Holding{})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}

	return nil
}
