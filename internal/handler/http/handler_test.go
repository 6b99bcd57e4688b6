package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/papertrade/papertrade/internal/service"
	"github.com/shopspring/decimal"
)

// fakeLedger records Edit calls so tests can assert what reaches the service.
type fakeLedger struct {
	editCalls   int
	editedID    uint
	lastUpdates service.EntryUpdates
}

func (f *fakeLedger) Create(ctx context.Context, userID uuid.UUID, coinID, txType string, quantity, price decimal.Decimal, targetPrice decimal.NullDecimal, recurring bool) (*models.Transaction, error) {
	return &models.Transaction{}, nil
}

func (f *fakeLedger) Edit(ctx context.Context, id uint, updates service.EntryUpdates) (*models.Transaction, error) {
	f.editCalls++
	f.editedID = id
	f.lastUpdates = updates
	return &models.Transaction{ID: id}, nil
}

func (f *fakeLedger) Delete(ctx context.Context, id uint) error { return nil }

func (f *fakeLedger) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeLedger) SweepConditional(ctx context.Context) error { return nil }
func (f *fakeLedger) SweepRecurring(ctx context.Context) error   { return nil }

func performEdit(t *testing.T, ledger service.LedgerService, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	c.Request = httptest.NewRequest(http.MethodPatch, "/transactions/7", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h := &Handler{
		ledgerService: ledger,
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.editTransaction(c)

	return w
}

func TestEditTransactionFields(t *testing.T) {
	t.Run("non_editable_field_rejected", func(t *testing.T) {
		ledger := &fakeLedger{}

		w := performEdit(t, ledger, `{"quantity":"5"}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "not editable") {
			t.Errorf("expected a not-editable error, got %s", w.Body.String())
		}
		if ledger.editCalls != 0 {
			t.Errorf("edit must not reach the service, got %d calls", ledger.editCalls)
		}
	})

	t.Run("mixed_body_rejected_entirely", func(t *testing.T) {
		ledger := &fakeLedger{}

		w := performEdit(t, ledger, `{"recurring":true,"price":"9000"}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
		if ledger.editCalls != 0 {
			t.Errorf("edit must not reach the service, got %d calls", ledger.editCalls)
		}
	})

	t.Run("editable_fields_forwarded", func(t *testing.T) {
		ledger := &fakeLedger{}

		w := performEdit(t, ledger, `{"targetPrice":"500","recurring":true}`)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if ledger.editCalls != 1 || ledger.editedID != 7 {
			t.Fatalf("expected one edit of id 7, got %d calls for id %d", ledger.editCalls, ledger.editedID)
		}

		updates := ledger.lastUpdates
		if updates.TargetPrice == nil || !updates.TargetPrice.Valid ||
			!updates.TargetPrice.Decimal.Equal(decimal.NewFromInt(500)) {
			t.Errorf("target price not forwarded: %+v", updates.TargetPrice)
		}
		if updates.Recurring == nil || !*updates.Recurring {
			t.Errorf("recurring flag not forwarded: %+v", updates.Recurring)
		}
	})

	t.Run("null_target_price_clears_it", func(t *testing.T) {
		ledger := &fakeLedger{}

		w := performEdit(t, ledger, `{"targetPrice":null}`)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if ledger.lastUpdates.TargetPrice == nil || ledger.lastUpdates.TargetPrice.Valid {
			t.Errorf("expected a cleared target price, got %+v", ledger.lastUpdates.TargetPrice)
		}
	})
}
