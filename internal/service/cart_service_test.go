package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCartUpsertReplacesQuantity(t *testing.T) {
	env := newServiceTestEnv(t)
	user := env.createUser(t, "cart@example.com")
	p1 := env.createProduct(t, "P1", "10.00", 10)

	env.addToCart(t, user.ID, p1.ID, 3)
	view := env.addToCart(t, user.ID, p1.ID, 1)

	if len(view.Items) != 1 {
		t.Fatalf("expected exactly one line, got %d", len(view.Items))
	}
	if view.Items[0].Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", view.Items[0].Quantity)
	}
	if view.Version != 2 {
		t.Fatalf("expected version 2 after two writes, got %d", view.Version)
	}
	if !view.Total.Decimal.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("unexpected total: %s", view.Total.String())
	}
}

func TestCartUpsertValidation(t *testing.T) {
	env := newServiceTestEnv(t)
	user := env.createUser(t, "cart-validate@example.com")
	p1 := env.createProduct(t, "P1", "10.00", 10)

	_, err := env.cartService.UpsertItem(context.Background(), UpsertCartItemInput{UserID: user.ID, ProductID: p1.ID, Quantity: 0})
	if !errors.Is(err, ErrInvalidCartQuantity) {
		t.Fatalf("expected ErrInvalidCartQuantity, got %v", err)
	}
	_, err = env.cartService.UpsertItem(context.Background(), UpsertCartItemInput{UserID: user.ID, ProductID: 9999, Quantity: 1})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if lines := env.cartLines(t, user.ID); len(lines) != 0 {
		t.Fatalf("rejected writes must not touch the cart, got %d lines", len(lines))
	}
}

func TestCartRemoveAbsentLineIsNoop(t *testing.T) {
	env := newServiceTestEnv(t)
	user := env.createUser(t, "cart-remove@example.com")
	p1 := env.createProduct(t, "P1", "10.00", 10)
	p2 := env.createProduct(t, "P2", "5.50", 10)
	before := env.addToCart(t, user.ID, p1.ID, 2)

	view, err := env.cartService.RemoveItem(context.Background(), user.ID, p2.ID, nil)
	if err != nil {
		t.Fatalf("remove absent line failed: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Product.ID != p1.ID {
		t.Fatalf("cart should be unchanged, got %+v", view.Items)
	}
	if view.Version != before.Version {
		t.Fatalf("version should not change on no-op remove, before=%d after=%d", before.Version, view.Version)
	}

	view, err = env.cartService.RemoveItem(context.Background(), user.ID, p1.ID, nil)
	if err != nil {
		t.Fatalf("remove line failed: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(view.Items))
	}
	if view.Version != before.Version+1 {
		t.Fatalf("expected version bump on delete, got %d", view.Version)
	}
}

func TestCartVersionConflict(t *testing.T) {
	env := newServiceTestEnv(t)
	user := env.createUser(t, "cart-conflict@example.com")
	p1 := env.createProduct(t, "P1", "10.00", 10)
	view := env.addToCart(t, user.ID, p1.ID, 1)

	stale := view.Version - 1
	_, err := env.cartService.UpsertItem(context.Background(), UpsertCartItemInput{
		UserID:          user.ID,
		ProductID:       p1.ID,
		Quantity:        5,
		ExpectedVersion: &stale,
	})
	if !errors.Is(err, ErrCartVersionConflict) {
		t.Fatalf("expected ErrCartVersionConflict, got %v", err)
	}
	lines := env.cartLines(t, user.ID)
	if len(lines) != 1 || lines[0].Quantity != 1 {
		t.Fatalf("conflicting write must be rolled back, got %+v", lines)
	}

	current := view.Version
	updated, err := env.cartService.UpsertItem(context.Background(), UpsertCartItemInput{
		UserID:          user.ID,
		ProductID:       p1.ID,
		Quantity:        5,
		ExpectedVersion: &current,
	})
	if err != nil {
		t.Fatalf("upsert with current version failed: %v", err)
	}
	if updated.Items[0].Quantity != 5 || updated.Version != current+1 {
		t.Fatalf("unexpected cart after versioned upsert: %+v", updated)
	}

	_, err = env.cartService.RemoveItem(context.Background(), user.ID, p1.ID, &current)
	if !errors.Is(err, ErrCartVersionConflict) {
		t.Fatalf("expected remove conflict, got %v", err)
	}
	if lines := env.cartLines(t, user.ID); len(lines) != 1 {
		t.Fatalf("conflicting remove must be rolled back")
	}
}

func TestCartDanglingLineOmitted(t *testing.T) {
	env := newServiceTestEnv(t)
	user := env.createUser(t, "cart-dangling@example.com")
	p1 := env.createProduct(t, "P1", "10.00", 10)
	p2 := env.createProduct(t, "P2", "5.50", 10)
	env.addToCart(t, user.ID, p1.ID, 2)
	env.addToCart(t, user.ID, p2.ID, 1)

	if _, err := env.productRepo.Delete(p1.ID); err != nil {
		t.Fatalf("delete product failed: %v", err)
	}

	view, err := env.cartService.GetCart(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get cart with dangling line failed: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Product.ID != p2.ID {
		t.Fatalf("dangling line should be omitted, got %+v", view.Items)
	}
	if !view.Total.Decimal.Equal(decimal.RequireFromString("5.50")) {
		t.Fatalf("unexpected total: %s", view.Total.String())
	}
}

func TestCartPurgeProduct(t *testing.T) {
	env := newServiceTestEnv(t)
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	p1 := env.createProduct(t, "P1", "10.00", 10)
	p2 := env.createProduct(t, "P2", "5.50", 10)
	env.addToCart(t, alice.ID, p1.ID, 1)
	env.addToCart(t, alice.ID, p2.ID, 1)
	env.addToCart(t, bob.ID, p1.ID, 4)

	purged, err := env.cartService.PurgeProduct(context.Background(), p1.ID)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 2 {
		t.Fatalf("expected 2 purged lines, got %d", purged)
	}
	if lines := env.cartLines(t, alice.ID); len(lines) != 1 || lines[0].ProductID != p2.ID {
		t.Fatalf("unexpected alice cart: %+v", lines)
	}
	if lines := env.cartLines(t, bob.ID); len(lines) != 0 {
		t.Fatalf("bob cart should be empty, got %+v", lines)
	}
}

func TestCartConcurrentUpsertLastWriteWins(t *testing.T) {
	env := newServiceTestEnv(t)
	env.serializeConnections(t)
	user := env.createUser(t, "concurrent-cart@example.com")
	p1 := env.createProduct(t, "P1", "10.00", 50)
	p2 := env.createProduct(t, "P2", "5.50", 50)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers*2)
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(quantity int) {
			defer wg.Done()
			for _, productID := range []uint{p1.ID, p2.ID} {
				_, err := env.cartService.UpsertItem(context.Background(), UpsertCartItemInput{
					UserID:    user.ID,
					ProductID: productID,
					Quantity:  quantity,
				})
				if err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent upsert failed: %v", err)
	}

	lines := env.cartLines(t, user.ID)
	if len(lines) != 2 {
		t.Fatalf("expected exactly one line per product, got %d", len(lines))
	}
	for _, line := range lines {
		if line.Quantity < 1 || line.Quantity > writers {
			t.Fatalf("line quantity %d is not one of the written values", line.Quantity)
		}
	}
	view, err := env.cartService.GetCart(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if view.Version != user.CartVersion+writers*2 {
		t.Fatalf("every write should bump the version once, got %d", view.Version)
	}
}
