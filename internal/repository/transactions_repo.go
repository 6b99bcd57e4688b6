package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/papertrade/papertrade/lib/errs"
	"gorm.io/gorm"
)

type TransactionsRepository interface {
	CreateTransaction(transaction *models.Transaction) error
	GetPendingTransaction(id uint) (*models.Transaction, error)
	SaveTransaction(transaction *models.Transaction) error
	ListByUser(userID uuid.UUID) ([]models.Transaction, error)
	ListPendingConditional() ([]models.Transaction, error)
	ListPendingRecurring() ([]models.Transaction, error)
}

type transactionsRepository struct {
	db *gorm.DB
}

func NewTransactionsRepository(db *gorm.DB) TransactionsRepository {
	return &transactionsRepository{db: db}
}

func (r *transactionsRepository) CreateTransaction(transaction *models.Transaction) error {
	return r.db.Create(transaction).Error
}

func (r *transactionsRepository) GetPendingTransaction(id uint) (*models.Transaction, error) {
	var transaction models.Transaction

	err := r.db.Where("id = ? AND status = ?", id, models.StatusPending).First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return &transaction, nil
}

func (r *transactionsRepository) SaveTransaction(transaction *models.Transaction) error {
	return r.db.Save(transaction).Error
}

func (r *transactionsRepository) ListByUser(userID uuid.UUID) ([]models.Transaction, error) {
	var transactions []models.Transaction
	if err := r.db.Where("user_id = ?", userID).Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *transactionsRepository) ListPendingConditional() ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.
		Where("status = ? AND target_price IS NOT NULL", models.StatusPending).
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *transactionsRepository) ListPendingRecurring() ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.
		Where("status = ? AND recurring = ?", models.StatusPending, true).
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}
