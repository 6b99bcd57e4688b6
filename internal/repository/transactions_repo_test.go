package repository_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/papertrade/papertrade/internal/repository"
	"github.com/papertrade/papertrade/lib/errs"
	"github.com/shopspring/decimal"
)

func newEntry(userID uuid.UUID, coinID string, target decimal.NullDecimal, recurring bool) *models.Transaction {
	return &models.Transaction{
		UserID:      userID,
		CoinID:      coinID,
		Type:        models.TypeBuy,
		Quantity:    decimal.NewFromInt(1),
		Price:       decimal.NewFromInt(100),
		TotalValue:  decimal.NewFromInt(100),
		Timestamp:   time.Now().UTC(),
		TargetPrice: target,
		Recurring:   recurring,
		Status:      models.StatusPending,
	}
}

func TestTransactionQueries(t *testing.T) {
	testDB := setupTestDB(t)
	transactionsRepo := repository.NewTransactionsRepository(testDB)

	userID := uuid.New()
	otherUser := uuid.New()

	target := decimal.NullDecimal{Decimal: decimal.NewFromInt(500), Valid: true}

	plain := newEntry(userID, "bitcoin", decimal.NullDecimal{}, false)
	conditional := newEntry(userID, "ethereum", target, false)
	recurring := newEntry(otherUser, "bitcoin", decimal.NullDecimal{}, true)

	for _, entry := range []*models.Transaction{plain, conditional, recurring} {
		if err := transactionsRepo.CreateTransaction(entry); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
	}

	t.Run("list_by_user", func(t *testing.T) {
		transactions, err := transactionsRepo.ListByUser(userID)
		if err != nil {
			t.Fatalf("ListByUser failed: %v", err)
		}
		if len(transactions) != 2 {
			t.Errorf("expected 2 transactions, got %d", len(transactions))
		}
	})

	t.Run("pending_conditional_only", func(t *testing.T) {
		transactions, err := transactionsRepo.ListPendingConditional()
		if err != nil {
			t.Fatalf("ListPendingConditional failed: %v", err)
		}
		if len(transactions) != 1 || transactions[0].ID != conditional.ID {
			t.Errorf("expected only the conditional entry, got %v", transactions)
		}
	})

	t.Run("pending_recurring_only", func(t *testing.T) {
		transactions, err := transactionsRepo.ListPendingRecurring()
		if err != nil {
			t.Fatalf("ListPendingRecurring failed: %v", err)
		}
		if len(transactions) != 1 || transactions[0].ID != recurring.ID {
			t.Errorf("expected only the recurring entry, got %v", transactions)
		}
	})

	t.Run("get_pending", func(t *testing.T) {
		found, err := transactionsRepo.GetPendingTransaction(plain.ID)
		if err != nil {
			t.Fatalf("GetPendingTransaction failed: %v", err)
		}
		if found.CoinID != "bitcoin" {
			t.Errorf("expected bitcoin entry, got %s", found.CoinID)
		}
	})

	t.Run("cancelled_entry_is_invisible", func(t *testing.T) {
		plain.Status = models.StatusCancelled
		if err := transactionsRepo.SaveTransaction(plain); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		_, err := transactionsRepo.GetPendingTransaction(plain.ID)
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("expected ErrNotFound for cancelled entry, got %v", err)
		}
	})

	t.Run("settled_conditional_leaves_sweep_queue", func(t *testing.T) {
		conditional.Status = models.StatusSettled
		if err := transactionsRepo.SaveTransaction(conditional); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		transactions, err := transactionsRepo.ListPendingConditional()
		if err != nil {
			t.Fatalf("ListPendingConditional failed: %v", err)
		}
		if len(transactions) != 0 {
			t.Errorf("expected empty sweep queue, got %d entries", len(transactions))
		}
	})
}
