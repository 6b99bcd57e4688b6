package models

import "github.com/shopspring/decimal"

// Event kinds published on a user's redis channel and pushed over websocket.
const (
	EventSettlement = "settlement"
	EventPriceAlert = "price_alert"
)

type Event struct {
	Kind          string          `json:"kind"`
	CoinID        string          `json:"coinID"`
	TransactionID uint            `json:"transactionID,omitempty"`
	Type          string          `json:"type,omitempty"`
	TargetPrice   decimal.Decimal `json:"targetPrice"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
}

type HoldingView struct {
	CoinID   string          `json:"coinID"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

type PortfolioView struct {
	UserID      string          `json:"userID"`
	CashBalance decimal.Decimal `json:"cashBalance"`
	TotalValue  decimal.Decimal `json:"totalValue"`
	Holdings    []HoldingView   `json:"holdings"`
}
