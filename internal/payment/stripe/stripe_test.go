package stripe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{SecretKey: "sk_test_123", APIBaseURL: server.URL + "/"})
}

func TestAuthorizeSucceeded(t *testing.T) {
	var form url.Values
	var idemKey, auth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		idemKey = r.Header.Get("Idempotency-Key")
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"pi_123","status":"succeeded","amount":2550,"amount_received":2550,"currency":"usd","created":1760000000}`)
	})

	result, err := client.Authorize(context.Background(), AuthorizeInput{
		Amount:          "25.50",
		Currency:        "usd",
		PaymentMethodID: "pm_card_visa",
		IdempotencyKey:  "idem-1",
		Metadata:        map[string]string{"order_no": "SF1"},
	})
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if result.PaymentIntentID != "pi_123" || result.Amount != "25.50" || result.Currency != "USD" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if form.Get("amount") != "2550" || form.Get("currency") != "usd" {
		t.Fatalf("unexpected amount/currency in form: %v", form)
	}
	if form.Get("confirm") != "true" || form.Get("error_on_requires_action") != "true" {
		t.Fatalf("payment intent must be confirmed synchronously: %v", form)
	}
	if form.Get("payment_method") != "pm_card_visa" || form.Get("metadata[order_no]") != "SF1" {
		t.Fatalf("unexpected payment method/metadata: %v", form)
	}
	if idemKey != "idem-1" {
		t.Fatalf("idempotency key not forwarded, got %q", idemKey)
	}
	if auth != "Bearer sk_test_123" {
		t.Fatalf("unexpected authorization header: %q", auth)
	}
}

func TestAuthorizeZeroDecimalCurrency(t *testing.T) {
	var amount string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		amount = r.PostForm.Get("amount")
		_, _ = io.WriteString(w, `{"id":"pi_jpy","status":"succeeded","amount":1200,"currency":"jpy"}`)
	})
	result, err := client.Authorize(context.Background(), AuthorizeInput{Amount: "1200", Currency: "JPY", PaymentMethodID: "pm_x"})
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if amount != "1200" {
		t.Fatalf("zero-decimal amount want 1200 got %s", amount)
	}
	if result.Amount != "1200" {
		t.Fatalf("unexpected result amount: %s", result.Amount)
	}
}

func TestAuthorizeDeclined(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`)
	})
	_, err := client.Authorize(context.Background(), AuthorizeInput{Amount: "10.00", Currency: "usd", PaymentMethodID: "pm_x"})
	if !errors.Is(err, ErrCardDeclined) {
		t.Fatalf("expected ErrCardDeclined, got %v", err)
	}
	var decline *DeclineError
	if !errors.As(err, &decline) {
		t.Fatalf("expected DeclineError, got %T", err)
	}
	if decline.Message != "Your card has insufficient funds." || decline.DeclineCode != "insufficient_funds" {
		t.Fatalf("unexpected decline detail: %+v", decline)
	}
}

func TestAuthorizeRequiresAction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"error":{"type":"card_error","code":"authentication_required","message":"This payment requires authentication."}}`)
	})
	_, err := client.Authorize(context.Background(), AuthorizeInput{Amount: "10.00", Currency: "usd", PaymentMethodID: "pm_3ds"})
	if !errors.Is(err, ErrRequiresAction) {
		t.Fatalf("expected ErrRequiresAction, got %v", err)
	}

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"pi_3ds","status":"requires_action","amount":1000,"currency":"usd"}`)
	})
	_, err = client.Authorize(context.Background(), AuthorizeInput{Amount: "10.00", Currency: "usd", PaymentMethodID: "pm_3ds"})
	if !errors.Is(err, ErrRequiresAction) {
		t.Fatalf("requires_action status should map to ErrRequiresAction, got %v", err)
	}
}

func TestAuthorizeGatewayErrorAndTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"type":"api_error","message":"boom"}}`)
	})
	_, err := client.Authorize(context.Background(), AuthorizeInput{Amount: "10.00", Currency: "usd", PaymentMethodID: "pm_x"})
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid, got %v", err)
	}

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = io.WriteString(w, `{"id":"pi_slow","status":"succeeded"}`)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Authorize(ctx, AuthorizeInput{Amount: "10.00", Currency: "usd", PaymentMethodID: "pm_x"})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("timeout should surface ErrRequestFailed, got %v", err)
	}
}

func TestAuthorizeRequiresSecretKey(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Authorize(context.Background(), AuthorizeInput{Amount: "1.00", Currency: "usd", PaymentMethodID: "pm_x"})
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestRefund(t *testing.T) {
	var paymentIntent, idemKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/refunds" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = r.ParseForm()
		paymentIntent = r.PostForm.Get("payment_intent")
		idemKey = r.Header.Get("Idempotency-Key")
		_, _ = io.WriteString(w, `{"id":"re_1","status":"succeeded"}`)
	})
	result, err := client.Refund(context.Background(), "pi_123", "refund_pi_123")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if result.RefundID != "re_1" || paymentIntent != "pi_123" || idemKey != "refund_pi_123" {
		t.Fatalf("unexpected refund call: result=%+v pi=%s key=%s", result, paymentIntent, idemKey)
	}
}

func TestToMinorAmount(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     int64
		wantErr  bool
	}{
		{amount: "25.50", currency: "USD", want: 2550},
		{amount: "0.01", currency: "eur", want: 1},
		{amount: "500", currency: "JPY", want: 500},
		{amount: "1.005", currency: "USD", wantErr: true},
		{amount: "0", currency: "USD", wantErr: true},
		{amount: "abc", currency: "USD", wantErr: true},
	}
	for _, tc := range cases {
		got, err := toMinorAmount(tc.amount, tc.currency)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("amount %s should fail", tc.amount)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("amount %s %s want %d got %d err=%v", tc.amount, tc.currency, tc.want, got, err)
		}
	}
}
