package repository

import (
	"testing"
	"time"

	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/models"

	"github.com/shopspring/decimal"
)

func TestPaymentMarkRefunded(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewPaymentRepository(db)
	now := time.Now()
	payment := &models.Payment{
		OrderID:     1,
		Provider:    constants.PaymentProviderStripe,
		ProviderRef: "pi_refund",
		Amount:      models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		Currency:    "usd",
		Status:      constants.PaymentStatusSuccess,
		PaidAt:      &now,
	}
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	affected, err := repo.MarkRefunded("pi_refund", now)
	if err != nil || affected != 1 {
		t.Fatalf("mark refunded failed: affected=%d err=%v", affected, err)
	}
	affected, err = repo.MarkRefunded("pi_refund", now)
	if err != nil || affected != 0 {
		t.Fatalf("second mark should be a no-op, affected=%d err=%v", affected, err)
	}

	got, err := repo.GetByProviderRef("pi_refund")
	if err != nil || got == nil {
		t.Fatalf("get payment failed: %v", err)
	}
	if got.Status != constants.PaymentStatusRefunded {
		t.Fatalf("status want refunded got %s", got.Status)
	}
}

func TestPaymentRefundPendingLookupByKey(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewPaymentRepository(db)
	pending := &models.Payment{
		Provider:       constants.PaymentProviderStripe,
		ProviderRef:    "pi_orphan",
		Amount:         models.NewMoneyFromDecimal(decimal.NewFromInt(25)),
		Currency:       "usd",
		Status:         constants.PaymentStatusRefundPending,
		IdempotencyKey: "checkout-9",
	}
	if err := repo.Create(pending); err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	got, err := repo.GetByIdempotencyKey(" checkout-9 ")
	if err != nil || got == nil || got.ProviderRef != "pi_orphan" {
		t.Fatalf("lookup by key failed: got=%+v err=%v", got, err)
	}
	missing, err := repo.GetByIdempotencyKey("checkout-10")
	if err != nil || missing != nil {
		t.Fatalf("unknown key should resolve to nil, got=%+v err=%v", missing, err)
	}

	affected, err := repo.MarkRefunded("pi_orphan", time.Now())
	if err != nil || affected != 1 {
		t.Fatalf("mark pending refunded failed: affected=%d err=%v", affected, err)
	}
}
