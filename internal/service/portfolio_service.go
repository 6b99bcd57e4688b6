package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/marketdata"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/papertrade/papertrade/internal/repository"
	"github.com/papertrade/papertrade/lib/errs"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PortfolioService interface {
	TotalValue(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	PercentageBreakdown(ctx context.Context, userID uuid.UUID) (map[string]decimal.Decimal, error)
	ProfitLoss(ctx context.Context, userID uuid.UUID, purchasePrices map[string]decimal.Decimal) (map[string]decimal.Decimal, error)
	CoinCount(ctx context.Context, userID uuid.UUID, coinID string) (decimal.Decimal, error)
	CashBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	AdjustCash(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	ValidatePurchase(ctx context.Context, userID uuid.UUID, totalCost decimal.Decimal) (bool, error)
	View(ctx context.Context, userID uuid.UUID) (*models.PortfolioView, error)
}

type portfolioService struct {
	portfoliosRepo repository.PortfoliosRepository
	db             *gorm.DB
	gateway        marketdata.Gateway
	locks          *UserLocks
	log            *slog.Logger
}

func NewPortfolioService(portfoliosRepo repository.PortfoliosRepository, db *gorm.DB, gateway marketdata.Gateway, locks *UserLocks, log *slog.Logger) PortfolioService {
	return &portfolioService{
		portfoliosRepo: portfoliosRepo,
		db:             db,
		gateway:        gateway,
		locks:          locks,
		log:            log,
	}
}

// TotalValue sums quantity times spot price over all held coins. A coin whose
// price lookup fails contributes zero; a dead price feed yields exactly zero,
// never an error.
func (s *portfolioService) TotalValue(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	if _, err := s.portfoliosRepo.GetPortfolio(userID); err != nil {
		return decimal.Zero, err
	}

	holdings, err := s.portfoliosRepo.ListHoldings(userID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, holding := range holdings {
		price, ok := s.gateway.Price(ctx, holding.CoinID)
		if !ok {
			s.log.Warn("price unavailable, coin contributes zero to valuation",
				"user", userID, "coin", holding.CoinID)
			continue
		}
		total = total.Add(holding.Quantity.Mul(price))
	}

	return total, nil
}

// PercentageBreakdown returns each coin's share of the total value. An empty
// map is returned when the total is zero.
func (s *portfolioService) PercentageBreakdown(ctx context.Context, userID uuid.UUID) (map[string]decimal.Decimal, error) {
	if _, err := s.portfoliosRepo.GetPortfolio(userID); err != nil {
		return nil, err
	}

	holdings, err := s.portfoliosRepo.ListHoldings(userID)
	if err != nil {
		return nil, err
	}

	values := make(map[string]decimal.Decimal, len(holdings))
	total := decimal.Zero
	for _, holding := range holdings {
		price, ok := s.gateway.Price(ctx, holding.CoinID)
		if !ok {
			continue
		}
		value := holding.Quantity.Mul(price)
		values[holding.CoinID] = value
		total = total.Add(value)
	}

	breakdown := make(map[string]decimal.Decimal, len(values))
	if total.IsZero() {
		return breakdown, nil
	}

	hundred := decimal.NewFromInt(100)
	for coinID, value := range values {
		breakdown[coinID] = value.Div(total).Mul(hundred)
	}

	return breakdown, nil
}

// ProfitLoss computes (current price - purchase price) * quantity per held
// coin. A coin without a supplied purchase price is compared against a zero
// cost basis, so the figure is pure unrealized value for those coins.
func (s *portfolioService) ProfitLoss(ctx context.Context, userID uuid.UUID, purchasePrices map[string]decimal.Decimal) (map[string]decimal.Decimal, error) {
	if _, err := s.portfoliosRepo.GetPortfolio(userID); err != nil {
		return nil, err
	}

	holdings, err := s.portfoliosRepo.ListHoldings(userID)
	if err != nil {
		return nil, err
	}

	profitLoss := make(map[string]decimal.Decimal, len(holdings))
	for _, holding := range holdings {
		currentPrice, ok := s.gateway.Price(ctx, holding.CoinID)
		if !ok {
			currentPrice = decimal.Zero
		}
		purchasePrice := purchasePrices[holding.CoinID]
		profitLoss[holding.CoinID] = currentPrice.Sub(purchasePrice).Mul(holding.Quantity)
	}

	return profitLoss, nil
}

func (s *portfolioService) CoinCount(ctx context.Context, userID uuid.UUID, coinID string) (decimal.Decimal, error) {
	if _, err := s.portfoliosRepo.GetPortfolio(userID); err != nil {
		return decimal.Zero, err
	}

	holding, err := s.portfoliosRepo.GetHolding(userID, coinID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	return holding.Quantity, nil
}

func (s *portfolioService) CashBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	portfolio, err := s.portfoliosRepo.GetPortfolio(userID)
	if err != nil {
		return decimal.Zero, err
	}
	return portfolio.CashBalance, nil
}

// AdjustCash applies a signed delta as an atomic check-then-set. The balance
// is left untouched when the result would be negative.
func (s *portfolioService) AdjustCash(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var balance decimal.Decimal

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := repository.NewPortfoliosRepository(tx)

		portfolio, err := txRepo.GetPortfolio(userID)
		if err != nil {
			return err
		}

		newBalance := portfolio.CashBalance.Add(delta)
		if newBalance.IsNegative() {
			return fmt.Errorf("cash balance cannot go negative: %w", errs.ErrInsufficientFunds)
		}

		portfolio.CashBalance = newBalance
		if err := txRepo.SavePortfolio(portfolio); err != nil {
			return err
		}

		balance = newBalance
		return nil
	})

	if err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}

func (s *portfolioService) ValidatePurchase(ctx context.Context, userID uuid.UUID, totalCost decimal.Decimal) (bool, error) {
	portfolio, err := s.portfoliosRepo.GetPortfolio(userID)
	if err != nil {
		return false, err
	}
	return portfolio.CashBalance.GreaterThanOrEqual(totalCost), nil
}

// View assembles the valuation snapshot pushed to websocket clients and
// served on the portfolio endpoints.
func (s *portfolioService) View(ctx context.Context, userID uuid.UUID) (*models.PortfolioView, error) {
	portfolio, err := s.portfoliosRepo.GetPortfolio(userID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.portfoliosRepo.ListHoldings(userID)
	if err != nil {
		return nil, err
	}

	view := &models.PortfolioView{
		UserID:      userID.String(),
		CashBalance: portfolio.CashBalance,
		TotalValue:  decimal.Zero,
		Holdings:    []models.HoldingView{},
	}

	for _, holding := range holdings {
		price, ok := s.gateway.Price(ctx, holding.CoinID)
		if !ok {
			price = decimal.Zero
		}
		value := holding.Quantity.Mul(price)
		view.Holdings = append(view.Holdings, models.HoldingView{
			CoinID:   holding.CoinID,
			Quantity: holding.Quantity,
			Price:    price,
			Value:    value,
		})
		view.TotalValue = view.TotalValue.Add(value)
	}

	return view, nil
}
