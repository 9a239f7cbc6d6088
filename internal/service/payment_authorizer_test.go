package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/payment/stripe"

	"github.com/shopspring/decimal"
)

func newTestStripeAuthorizer(t *testing.T, status int, body string) *StripeAuthorizer {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return NewStripeAuthorizer(stripe.NewClient(stripe.Config{SecretKey: "sk_test_123", APIBaseURL: server.URL}))
}

func stripeTestInput() AuthorizeInput {
	return AuthorizeInput{
		Amount:          decimal.RequireFromString("25.50"),
		Currency:        "usd",
		PaymentMethodID: "pm_card_visa",
		IdempotencyKey:  "idem-1",
	}
}

func TestStripeAuthorizerSucceeded(t *testing.T) {
	authorizer := newTestStripeAuthorizer(t, http.StatusOK, `{"id":"pi_1","status":"succeeded","amount":2550,"currency":"usd","created":1760000000}`)
	result, err := authorizer.Authorize(context.Background(), stripeTestInput())
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if result.ProviderRef != "pi_1" || result.Provider != constants.PaymentProviderStripe || result.PaidAt == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestStripeAuthorizerMapsErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{
			name:   "declined",
			status: http.StatusPaymentRequired,
			body:   `{"error":{"type":"card_error","code":"card_declined","decline_code":"generic_decline","message":"Your card was declined."}}`,
			target: ErrPaymentDeclined,
		},
		{
			name:   "authentication_required",
			status: http.StatusPaymentRequired,
			body:   `{"error":{"type":"card_error","code":"authentication_required","message":"Authentication required."}}`,
			target: ErrPaymentRequiresAction,
		},
		{
			name:   "requires_action_status",
			status: http.StatusOK,
			body:   `{"id":"pi_2","status":"requires_action","amount":2550,"currency":"usd"}`,
			target: ErrPaymentRequiresAction,
		},
		{
			name:   "server_error",
			status: http.StatusInternalServerError,
			body:   `{"error":{"type":"api_error","message":"boom"}}`,
			target: ErrPaymentFailed,
		},
		{
			name:   "garbage",
			status: http.StatusOK,
			body:   `not-json`,
			target: ErrPaymentFailed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			authorizer := newTestStripeAuthorizer(t, tc.status, tc.body)
			_, err := authorizer.Authorize(context.Background(), stripeTestInput())
			if !errors.Is(err, tc.target) || !errors.Is(err, ErrPaymentFailed) {
				t.Fatalf("expected %v wrapping ErrPaymentFailed, got %v", tc.target, err)
			}
		})
	}
}

func TestStripeAuthorizerDeclineMessage(t *testing.T) {
	authorizer := newTestStripeAuthorizer(t, http.StatusPaymentRequired, `{"error":{"type":"card_error","code":"card_declined","message":"Your card has insufficient funds."}}`)
	_, err := authorizer.Authorize(context.Background(), stripeTestInput())
	var declined *PaymentDeclinedError
	if !errors.As(err, &declined) || declined.Message != "Your card has insufficient funds." {
		t.Fatalf("expected decline message, got %v", err)
	}
}
