package cache

import (
	"context"
	"testing"
	"time"
)

func TestCheckoutLockerMemoryFallback(t *testing.T) {
	locker := NewCheckoutLocker()
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx, 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire failed: ok=%v err=%v", ok, err)
	}
	if _, ok, err := locker.Acquire(ctx, 1, time.Minute); err != nil || ok {
		t.Fatalf("second acquire should be rejected: ok=%v err=%v", ok, err)
	}
	if _, ok, err := locker.Acquire(ctx, 2, time.Minute); err != nil || !ok {
		t.Fatalf("other user should not be blocked: ok=%v err=%v", ok, err)
	}

	release()
	release2, ok, err := locker.Acquire(ctx, 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after release failed: ok=%v err=%v", ok, err)
	}
	release2()
}

func TestCheckoutLockerExpiredLockCanBeTaken(t *testing.T) {
	locker := NewCheckoutLocker()
	ctx := context.Background()

	staleRelease, ok, err := locker.Acquire(ctx, 7, 10*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("acquire failed: ok=%v err=%v", ok, err)
	}
	time.Sleep(20 * time.Millisecond)

	release, ok, err := locker.Acquire(ctx, 7, time.Minute)
	if err != nil || !ok {
		t.Fatalf("expired lock should be taken over: ok=%v err=%v", ok, err)
	}
	// 过期持有者的释放不能影响新持有者
	staleRelease()
	if _, ok, _ := locker.Acquire(ctx, 7, time.Minute); ok {
		t.Fatalf("stale release must not free the new holder's lock")
	}
	release()
}

func TestCheckoutLockerCanceledContext(t *testing.T) {
	locker := NewCheckoutLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok, err := locker.Acquire(ctx, 1, time.Minute); err == nil || ok {
		t.Fatalf("canceled context should fail: ok=%v err=%v", ok, err)
	}
}
