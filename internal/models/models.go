package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TypeBuy  = "buy"
	TypeSell = "sell"
)

// Transaction status. Settled and cancelled are both terminal; only pending
// entries are visible to edits, deletes and sweeps.
const (
	StatusPending   = "pending"
	StatusSettled   = "settled"
	StatusCancelled = "cancelled"
)

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;" json:"id"`
	Name     string    `gorm:"unique;not null" json:"name"`
	Password string    `gorm:"not null" json:"-"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}

type Session struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       uuid.UUID `gorm:"type:uuid"`
	User         User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	RefreshToken string    `gorm:"unique"`
	ExpiresAt    time.Time
}

type Portfolio struct {
	UserID      uuid.UUID       `gorm:"type:uuid;primaryKey" json:"userID"`
	CashBalance decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"cashBalance"`
}

// Holding is one coin position. A row exists only while the quantity is
// strictly positive; selling a position down to zero deletes the row.
type Holding struct {
	ID       uint            `gorm:"primaryKey" json:"-"`
	UserID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_user_coin" json:"userID"`
	CoinID   string          `gorm:"not null;uniqueIndex:idx_user_coin" json:"coinID"`
	Quantity decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
}

type Transaction struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	UserID      uuid.UUID           `gorm:"type:uuid;not null;index" json:"userID"`
	CoinID      string              `gorm:"not null" json:"coinID"`
	Type        string              `gorm:"not null" json:"type"`
	Quantity    decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"quantity"`
	Price       decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"price"`
	TotalValue  decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"totalValue"`
	Timestamp   time.Time           `json:"timestamp"`
	TargetPrice decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"targetPrice"`
	Recurring   bool                `gorm:"default:false" json:"recurring"`
	Status      string              `gorm:"not null;default:pending;index" json:"status"`
}
