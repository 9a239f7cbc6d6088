package cache

import (
	"context"
	"testing"

	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/models"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	if err := InitRedis(&config.RedisConfig{Enabled: false}); err != nil {
		t.Fatalf("init disabled redis failed: %v", err)
	}
	if Enabled() || Client() != nil {
		t.Fatalf("cache should be disabled")
	}
	ctx := context.Background()
	state := BuildUserAuthState(&models.User{ID: 3, Role: "admin", Status: "active", TokenVersion: 2})
	if err := SetUserAuthState(ctx, state); err != nil {
		t.Fatalf("set on disabled cache should be noop, got %v", err)
	}
	got, hit, err := GetUserAuthState(ctx, 3)
	if err != nil || hit || got != nil {
		t.Fatalf("disabled cache should miss, got=%+v hit=%v err=%v", got, hit, err)
	}
	if err := Ping(ctx); err != nil {
		t.Fatalf("ping on disabled cache should be noop, got %v", err)
	}
}

func TestBuildUserAuthState(t *testing.T) {
	state := BuildUserAuthState(&models.User{ID: 9, Role: "user", Status: "active", TokenVersion: 4})
	if state.UserID != 9 || state.Role != "user" || state.TokenVersion != 4 {
		t.Fatalf("unexpected state: %+v", state)
	}
	if BuildUserAuthState(nil) != nil {
		t.Fatalf("nil user should build nil state")
	}
}

func TestBuildKeyUsesPrefix(t *testing.T) {
	old := redisPrefix
	redisPrefix = "sf"
	defer func() { redisPrefix = old }()
	if got := buildKey("auth:user:1"); got != "sf:auth:user:1" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := buildKey(" "); got != "sf" {
		t.Fatalf("empty key should collapse to prefix, got %s", got)
	}
}
