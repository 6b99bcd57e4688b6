package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/papertrade/papertrade/internal/models"
	"github.com/papertrade/papertrade/internal/repository"
	"github.com/papertrade/papertrade/internal/service"
	"github.com/papertrade/papertrade/lib/errs"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newUsersService(db *gorm.DB) service.UsersService {
	return service.NewUsersService(
		repository.NewUsersRepository(db),
		db, decimal.NewFromInt(10000),
	)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds_portfolio_with_starting_cash", func(t *testing.T) {
		db := setupTestDB(t)
		users := newUsersService(db)

		user, err := users.Register(ctx, "alice", "hunter2")
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if user.Password == "hunter2" {
			t.Error("password stored in plain text")
		}

		var portfolio models.Portfolio
		if err := db.First(&portfolio, "user_id = ?", user.ID).Error; err != nil {
			t.Fatalf("portfolio not created with user: %v", err)
		}
		if !portfolio.CashBalance.Equal(decimal.NewFromInt(10000)) {
			t.Errorf("expected starting cash 10000, got %s", portfolio.CashBalance)
		}
	})

	t.Run("duplicate_name", func(t *testing.T) {
		db := setupTestDB(t)
		users := newUsersService(db)

		if _, err := users.Register(ctx, "alice", "hunter2"); err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		_, err := users.Register(ctx, "alice", "other")
		if !errors.Is(err, errs.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("empty_credentials", func(t *testing.T) {
		db := setupTestDB(t)
		users := newUsersService(db)

		if _, err := users.Register(ctx, "", "hunter2"); !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty name, got %v", err)
		}
		if _, err := users.Register(ctx, "alice", ""); !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty password, got %v", err)
		}
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := newUsersService(db)

	registered, err := users.Register(ctx, "bob", "secret")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	t.Run("correct_password", func(t *testing.T) {
		user, err := users.Login(ctx, "bob", "secret")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if user.ID != registered.ID {
			t.Errorf("expected user %s, got %s", registered.ID, user.ID)
		}
	})

	t.Run("wrong_password", func(t *testing.T) {
		_, err := users.Login(ctx, "bob", "wrong")
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("unknown_user", func(t *testing.T) {
		_, err := users.Login(ctx, "nobody", "secret")
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := newUsersService(db)

	user, err := users.Register(ctx, "carol", "secret")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tokens := newTokenService(db)
	if _, _, err := tokens.GenerateTokens(user.ID, user.Name); err != nil {
		t.Fatalf("GenerateTokens failed: %v", err)
	}

	if err := users.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	var stored models.User
	err = db.First(&stored, "id = ?", user.ID).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected user row gone, got err=%v", err)
	}

	// the account's sessions go with it
	var sessionCount int64
	db.Model(&models.Session{}).Where("user_id = ?", user.ID).Count(&sessionCount)
	if sessionCount != 0 {
		t.Errorf("expected no sessions after delete, got %d", sessionCount)
	}
}
