package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/payment/stripe"

	"github.com/shopspring/decimal"
)

// PaymentAuthorizer 支付网关边界，只有确认成功的扣款才返回结果
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, input AuthorizeInput) (*AuthorizeResult, error)
	Refund(ctx context.Context, providerRef, idempotencyKey string) error
}

// AuthorizeInput 扣款请求
type AuthorizeInput struct {
	Amount          decimal.Decimal
	Currency        string
	PaymentMethodID string
	IdempotencyKey  string
	Description     string
	Metadata        map[string]string
}

// AuthorizeResult 扣款确认结果
type AuthorizeResult struct {
	Provider    string
	ProviderRef string
	PaidAt      *time.Time
}

// StripeAuthorizer 基于 Stripe PaymentIntents 的扣款实现
type StripeAuthorizer struct {
	client *stripe.Client
}

// NewStripeAuthorizer 创建 Stripe 扣款实现
func NewStripeAuthorizer(client *stripe.Client) *StripeAuthorizer {
	return &StripeAuthorizer{client: client}
}

// Authorize 同步确认扣款，网关错误统一映射为 ErrPaymentFailed 族
func (a *StripeAuthorizer) Authorize(ctx context.Context, input AuthorizeInput) (*AuthorizeResult, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("%w: gateway not configured", ErrPaymentFailed)
	}
	result, err := a.client.Authorize(ctx, stripe.AuthorizeInput{
		Amount:          input.Amount.StringFixed(2),
		Currency:        input.Currency,
		PaymentMethodID: input.PaymentMethodID,
		IdempotencyKey:  input.IdempotencyKey,
		Description:     input.Description,
		Metadata:        input.Metadata,
	})
	if err != nil {
		return nil, mapStripeError(err)
	}
	if result == nil || strings.TrimSpace(result.PaymentIntentID) == "" {
		return nil, fmt.Errorf("%w: empty payment intent", ErrPaymentFailed)
	}
	paidAt := result.PaidAt
	if paidAt == nil {
		now := time.Now()
		paidAt = &now
	}
	return &AuthorizeResult{
		Provider:    constants.PaymentProviderStripe,
		ProviderRef: result.PaymentIntentID,
		PaidAt:      paidAt,
	}, nil
}

// Refund 全额退款
func (a *StripeAuthorizer) Refund(ctx context.Context, providerRef, idempotencyKey string) error {
	if a == nil || a.client == nil {
		return fmt.Errorf("%w: gateway not configured", ErrPaymentFailed)
	}
	_, err := a.client.Refund(ctx, providerRef, idempotencyKey)
	return err
}

func mapStripeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, stripe.ErrRequiresAction) {
		return fmt.Errorf("%w: %v", ErrPaymentRequiresAction, err)
	}
	var declined *stripe.DeclineError
	if errors.As(err, &declined) {
		return &PaymentDeclinedError{Message: declined.Message}
	}
	return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
}

// normalizePaymentError 任何未知错误都按支付失败处理
func normalizePaymentError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPaymentFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
}
