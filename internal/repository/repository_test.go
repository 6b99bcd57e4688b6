package repository_test

import (
	"fmt"
	"testing"

	"github.com/papertrade/papertrade/internal/models"
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
