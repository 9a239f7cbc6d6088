package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 仅持有者可释放
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CheckoutLocker 用户级下单锁：Redis 启用时使用 SET NX PX，否则退化为进程内锁
type CheckoutLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLockEntry
}

type memoryLockEntry struct {
	token     string
	expiresAt time.Time
}

// NewCheckoutLocker 创建下单锁
func NewCheckoutLocker() *CheckoutLocker {
	return &CheckoutLocker{locks: make(map[string]memoryLockEntry)}
}

func checkoutLockKey(userID uint) string {
	return fmt.Sprintf("lock:checkout:%d", userID)
}

// Acquire 获取下单锁，返回释放函数；锁被占用时 acquired 为 false
func (l *CheckoutLocker) Acquire(ctx context.Context, userID uint, ttl time.Duration) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	key := checkoutLockKey(userID)
	token := uuid.NewString()

	if Enabled() {
		ok, err := redisClient.SetNX(ctx, buildKey(key), token, ttl).Result()
		if err != nil || !ok {
			return nil, false, err
		}
		release := func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = releaseLockScript.Run(releaseCtx, redisClient, []string{buildKey(key)}, token).Err()
		}
		return release, true, nil
	}

	if !l.acquireMemory(key, token, ttl) {
		return nil, false, nil
	}
	return func() { l.releaseMemory(key, token) }, true, nil
}

func (l *CheckoutLocker) acquireMemory(key, token string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if entry, exists := l.locks[key]; exists && now.Before(entry.expiresAt) {
		return false
	}
	l.locks[key] = memoryLockEntry{token: token, expiresAt: now.Add(ttl)}
	return true
}

func (l *CheckoutLocker) releaseMemory(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, exists := l.locks[key]; exists && entry.token == token {
		delete(l.locks, key)
	}
}
