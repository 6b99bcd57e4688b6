package repository_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/papertrade/papertrade/internal/repository"
	"github.com/papertrade/papertrade/lib/errs"
	"github.com/shopspring/decimal"
)

func TestPortfolioLifecycle(t *testing.T) {
	testDB := setupTestDB(t)
	portfoliosRepo := repository.NewPortfoliosRepository(testDB)

	userID := uuid.New()

	t.Run("get_missing_portfolio", func(t *testing.T) {
		_, err := portfoliosRepo.GetPortfolio(userID)
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("create_and_get", func(t *testing.T) {
		portfolio := &models.Portfolio{
			UserID:      userID,
			CashBalance: decimal.NewFromInt(1000),
		}
		if err := portfoliosRepo.CreatePortfolio(portfolio); err != nil {
			t.Fatalf("CreatePortfolio failed: %v", err)
		}

		found, err := portfoliosRepo.GetPortfolio(userID)
		if err != nil {
			t.Fatalf("GetPortfolio failed after create: %v", err)
		}
		if !found.CashBalance.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("expected cash balance 1000, got %s", found.CashBalance)
		}
	})

	t.Run("duplicate_portfolio", func(t *testing.T) {
		err := portfoliosRepo.CreatePortfolio(&models.Portfolio{
			UserID:      userID,
			CashBalance: decimal.Zero,
		})
		if !errors.Is(err, errs.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("save_updates_balance", func(t *testing.T) {
		portfolio, err := portfoliosRepo.GetPortfolio(userID)
		if err != nil {
			t.Fatalf("GetPortfolio failed: %v", err)
		}

		portfolio.CashBalance = decimal.NewFromInt(800)
		if err := portfoliosRepo.SavePortfolio(portfolio); err != nil {
			t.Fatalf("SavePortfolio failed: %v", err)
		}

		found, err := portfoliosRepo.GetPortfolio(userID)
		if err != nil {
			t.Fatalf("GetPortfolio failed: %v", err)
		}
		if !found.CashBalance.Equal(decimal.NewFromInt(800)) {
			t.Errorf("expected cash balance 800, got %s", found.CashBalance)
		}
	})
}

func TestHoldings(t *testing.T) {
	testDB := setupTestDB(t)
	portfoliosRepo := repository.NewPortfoliosRepository(testDB)

	userID := uuid.New()

	t.Run("get_missing_holding", func(t *testing.T) {
		_, err := portfoliosRepo.GetHolding(userID, "bitcoin")
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("add_and_list", func(t *testing.T) {
		if err := portfoliosRepo.AddHolding(&models.Holding{
			UserID:   userID,
			CoinID:   "bitcoin",
			Quantity: decimal.NewFromInt(2),
		}); err != nil {
			t.Fatalf("AddHolding failed: %v", err)
		}
		if err := portfoliosRepo.AddHolding(&models.Holding{
			UserID:   userID,
			CoinID:   "ethereum",
			Quantity: decimal.NewFromInt(3),
		}); err != nil {
			t.Fatalf("AddHolding failed: %v", err)
		}

		holdings, err := portfoliosRepo.ListHoldings(userID)
		if err != nil {
			t.Fatalf("ListHoldings failed: %v", err)
		}
		if len(holdings) != 2 {
			t.Errorf("expected 2 holdings, got %d", len(holdings))
		}
	})

	t.Run("duplicate_holding", func(t *testing.T) {
		err := portfoliosRepo.AddHolding(&models.Holding{
			UserID:   userID,
			CoinID:   "bitcoin",
			Quantity: decimal.NewFromInt(1),
		})
		if !errors.Is(err, errs.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("delete_holding", func(t *testing.T) {
		if err := portfoliosRepo.DeleteHolding(userID, "bitcoin"); err != nil {
			t.Fatalf("DeleteHolding failed: %v", err)
		}

		_, err := portfoliosRepo.GetHolding(userID, "bitcoin")
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("delete_missing_holding", func(t *testing.T) {
		err := portfoliosRepo.DeleteHolding(userID, "bitcoin")
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
