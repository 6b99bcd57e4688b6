package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/marketdata"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/papertrade/papertrade/internal/repository"
	"github.com/papertrade/papertrade/lib/errs"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EntryUpdates is the closed set of fields an existing pending entry accepts.
// Quantity, price and total value are fixed at creation time.
type EntryUpdates struct {
	TargetPrice *decimal.NullDecimal
	Recurring   *bool
}

// EventPublisher pushes user-facing events (settlements, alerts) out of band.
type EventPublisher interface {
	PublishEvent(ctx context.Context, userID uuid.UUID, event models.Event) error
}

type LedgerService interface {
	Create(ctx context.Context, userID uuid.UUID, coinID, txType string, quantity, price decimal.Decimal, targetPrice decimal.NullDecimal, recurring bool) (*models.Transaction, error)
	Edit(ctx context.Context, id uint, updates EntryUpdates) (*models.Transaction, error)
	Delete(ctx context.Context, id uint) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	SweepConditional(ctx context.Context) error
	SweepRecurring(ctx context.Context) error
}

type ledgerService struct {
	transactionsRepo repository.TransactionsRepository
	db               *gorm.DB
	gateway          marketdata.Gateway
	events           EventPublisher
	locks            *UserLocks
	log              *slog.Logger
}

func NewLedgerService(transactionsRepo repository.TransactionsRepository, db *gorm.DB, gateway marketdata.Gateway, events EventPublisher, locks *UserLocks, log *slog.Logger) LedgerService {
	return &ledgerService{
		transactionsRepo: transactionsRepo,
		db:               db,
		gateway:          gateway,
		events:           events,
		locks:            locks,
		log:              log,
	}
}

// Create validates the trade against the user's portfolio, applies the cash
// and holding effect and persists the ledger entry, all inside a single
// database transaction so the portfolio is never durably changed without a
// recorded entry. The per-user lock keeps the read-validate-mutate-commit
// sequence serial for one user.
func (s *ledgerService) Create(ctx context.Context, userID uuid.UUID, coinID, txType string, quantity, price decimal.Decimal, targetPrice decimal.NullDecimal, recurring bool) (*models.Transaction, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("quantity must be positive: %w", errs.ErrInvalidInput)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("price must be positive: %w", errs.ErrInvalidInput)
	}
	if txType != models.TypeBuy && txType != models.TypeSell {
		return nil, fmt.Errorf("transaction type must be buy or sell: %w", errs.ErrInvalidInput)
	}
	if coinID == "" {
		return nil, fmt.Errorf("coin id is required: %w", errs.ErrInvalidInput)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	var entry *models.Transaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		portfoliosRepo := repository.NewPortfoliosRepository(tx)
		transactionsRepo := repository.NewTransactionsRepository(tx)

		portfolio, err := portfoliosRepo.GetPortfolio(userID)
		if err != nil {
			return err
		}

		totalValue := price.Mul(quantity)

		switch txType {
		case models.TypeBuy:
			if portfolio.CashBalance.LessThan(totalValue) {
				return errs.ErrInsufficientFunds
			}
			portfolio.CashBalance = portfolio.CashBalance.Sub(totalValue)
			if err := portfoliosRepo.SavePortfolio(portfolio); err != nil {
				return err
			}
			if err := creditHolding(portfoliosRepo, userID, coinID, quantity); err != nil {
				return err
			}

		case models.TypeSell:
			holding, err := portfoliosRepo.GetHolding(userID, coinID)
			if errors.Is(err, errs.ErrNotFound) {
				return errs.ErrInsufficientHoldings
			}
			if err != nil {
				return err
			}
			if quantity.GreaterThan(holding.Quantity) {
				return errs.ErrInsufficientHoldings
			}

			remaining := holding.Quantity.Sub(quantity)
			if remaining.IsPositive() {
				holding.Quantity = remaining
				if err := portfoliosRepo.SaveHolding(holding); err != nil {
					return err
				}
			} else {
				// position closed: the row goes away rather than sitting at zero
				if err := portfoliosRepo.DeleteHolding(userID, coinID); err != nil {
					return err
				}
			}

			portfolio.CashBalance = portfolio.CashBalance.Add(totalValue)
			if err := portfoliosRepo.SavePortfolio(portfolio); err != nil {
				return err
			}
		}

		entry = &models.Transaction{
			UserID:      userID,
			CoinID:      coinID,
			Type:        txType,
			Quantity:    quantity,
			Price:       price,
			TotalValue:  totalValue,
			Timestamp:   time.Now().UTC(),
			TargetPrice: targetPrice,
			Recurring:   recurring,
			Status:      models.StatusPending,
		}

		return transactionsRepo.CreateTransaction(entry)
	})

	if err != nil {
		return nil, err
	}

	s.log.Info("transaction created",
		"id", entry.ID, "user", userID, "coin", coinID, "type", txType,
		"quantity", quantity, "price", price)

	return entry, nil
}

func creditHolding(portfoliosRepo repository.PortfoliosRepository, userID uuid.UUID, coinID string, quantity decimal.Decimal) error {
	holding, err := portfoliosRepo.GetHolding(userID, coinID)
	if errors.Is(err, errs.ErrNotFound) {
		return portfoliosRepo.AddHolding(&models.Holding{
			UserID:   userID,
			CoinID:   coinID,
			Quantity: quantity,
		})
	}
	if err != nil {
		return err
	}

	holding.Quantity = holding.Quantity.Add(quantity)
	return portfoliosRepo.SaveHolding(holding)
}

// Edit applies field updates to a pending entry. Total value is deliberately
// not recomputed; it records the execution terms at creation time.
func (s *ledgerService) Edit(ctx context.Context, id uint, updates EntryUpdates) (*models.Transaction, error) {
	transaction, err := s.transactionsRepo.GetPendingTransaction(id)
	if err != nil {
		return nil, err
	}

	if updates.TargetPrice != nil {
		transaction.TargetPrice = *updates.TargetPrice
	}
	if updates.Recurring != nil {
		transaction.Recurring = *updates.Recurring
	}

	if err := s.transactionsRepo.SaveTransaction(transaction); err != nil {
		return nil, err
	}

	s.log.Info("transaction updated", "id", id)
	return transaction, nil
}

// Delete cancels a pending entry. Entries are never physically removed, and a
// second delete of the same id fails with ErrNotFound.
func (s *ledgerService) Delete(ctx context.Context, id uint) error {
	transaction, err := s.transactionsRepo.GetPendingTransaction(id)
	if err != nil {
		return err
	}

	transaction.Status = models.StatusCancelled
	if err := s.transactionsRepo.SaveTransaction(transaction); err != nil {
		return err
	}

	s.log.Info("transaction cancelled", "id", id)
	return nil
}

func (s *ledgerService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	return s.transactionsRepo.ListByUser(userID)
}

// SweepConditional settles pending target-price entries whose condition is
// met by the current market price. Entries whose price lookup fails are left
// pending for the next pass; one entry's failure never aborts the batch.
// Settlement carries no cash or holding effect: the debit/credit already
// happened at creation.
func (s *ledgerService) SweepConditional(ctx context.Context) error {
	entries, err := s.transactionsRepo.ListPendingConditional()
	if err != nil {
		return fmt.Errorf("sweep conditional: %w", err)
	}

	for i := range entries {
		entry := &entries[i]

		currentPrice, ok := s.gateway.Price(ctx, entry.CoinID)
		if !ok {
			continue
		}

		target := entry.TargetPrice.Decimal
		met := (entry.Type == models.TypeBuy && currentPrice.LessThanOrEqual(target)) ||
			(entry.Type == models.TypeSell && currentPrice.GreaterThanOrEqual(target))
		if !met {
			continue
		}

		entry.Status = models.StatusSettled
		if err := s.transactionsRepo.SaveTransaction(entry); err != nil {
			s.log.Error("failed to settle transaction", "id", entry.ID, "error", err)
			continue
		}

		s.log.Info("conditional transaction settled",
			"id", entry.ID, "coin", entry.CoinID, "target", target, "price", currentPrice)

		if s.events != nil {
			event := models.Event{
				Kind:          models.EventSettlement,
				CoinID:        entry.CoinID,
				TransactionID: entry.ID,
				Type:          entry.Type,
				TargetPrice:   target,
				CurrentPrice:  currentPrice,
			}
			if err := s.events.PublishEvent(ctx, entry.UserID, event); err != nil {
				s.log.Warn("failed to publish settlement event", "id", entry.ID, "error", err)
			}
		}
	}

	return nil
}

// SweepRecurring advances each pending recurring entry's timestamp by one
// day. The trade itself is not re-executed; rescheduling is the whole
// contract here.
func (s *ledgerService) SweepRecurring(ctx context.Context) error {
	entries, err := s.transactionsRepo.ListPendingRecurring()
	if err != nil {
		return fmt.Errorf("sweep recurring: %w", err)
	}

	for i := range entries {
		entry := &entries[i]
		entry.Timestamp = time.Now().UTC().Add(24 * time.Hour)
		if err := s.transactionsRepo.SaveTransaction(entry); err != nil {
			s.log.Error("failed to reschedule recurring transaction", "id", entry.ID, "error", err)
			continue
		}
	}

	return nil
}
