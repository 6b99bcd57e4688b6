package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Portfolio{},
		&models.Holding{},
		&models.Transaction{},
	); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedPortfolio(t *testing.T, db *gorm.DB, cash int64) uuid.UUID {
	userID := uuid.New()
	if err := db.Create(&models.Portfolio{
		UserID:      userID,
		CashBalance: decimal.NewFromInt(cash),
	}).Error; err != nil {
		t.Fatalf("failed to seed portfolio: %v", err)
	}
	return userID
}

// recordingPublisher captures events the ledger would push over redis.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
	users  []uuid.UUID
}

func (p *recordingPublisher) PublishEvent(_ context.Context, userID uuid.UUID, event models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.users = append(p.users, userID)
	return nil
}
