package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/storefront-next/internal/cache"
	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/queue"
	"github.com/storefront-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type serviceTestEnv struct {
	db             *gorm.DB
	cfg            *config.Config
	userRepo       *repository.GormUserRepository
	productRepo    *repository.GormProductRepository
	cartRepo       *repository.GormCartRepository
	orderRepo      *repository.GormOrderRepository
	paymentRepo    *repository.GormPaymentRepository
	authorizer     *fakeAuthorizer
	locker         *cache.CheckoutLocker
	authService    *UserAuthService
	cartService    *CartService
	productService *ProductService
	orderService   *OrderService
}

func newServiceTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.UserJWT.SecretKey = "test-user-secret"
	cfg.UserJWT.ExpireHours = 24
	cfg.Security.BcryptCost = 4
	cfg.Security.PasswordPolicy.MinLength = 6
	cfg.Payment.Currency = "usd"
	cfg.Payment.TimeoutSeconds = 5
	cfg.Order.CheckoutLockSeconds = 30
	return cfg
}

func newServiceTestEnv(t *testing.T) *serviceTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}

	env := &serviceTestEnv{
		db:          db,
		cfg:         newServiceTestConfig(),
		userRepo:    repository.NewUserRepository(db),
		productRepo: repository.NewProductRepository(db),
		cartRepo:    repository.NewCartRepository(db),
		orderRepo:   repository.NewOrderRepository(db),
		paymentRepo: repository.NewPaymentRepository(db),
		authorizer:  &fakeAuthorizer{},
		locker:      cache.NewCheckoutLocker(),
	}
	env.authService = NewUserAuthService(env.cfg, env.userRepo)
	env.cartService = NewCartService(env.userRepo, env.productRepo, env.cartRepo)
	env.productService = NewProductService(env.productRepo, env.cartService, queueClient)
	env.orderService = NewOrderService(env.cfg, env.orderRepo, env.productRepo, env.cartRepo, env.userRepo, env.paymentRepo, env.authorizer, env.locker, queueClient)
	return env
}

func (e *serviceTestEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{
		Name:         "Tester",
		Email:        email,
		PasswordHash: "hash",
		Role:         constants.UserRoleStandard,
		Status:       constants.UserStatusActive,
	}
	if err := e.db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func (e *serviceTestEnv) createProduct(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        name,
		Description: name + " description",
		Price:       models.NewMoneyFromDecimal(decimal.RequireFromString(price)),
		Category:    "electronics",
		Stock:       stock,
	}
	if err := e.db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func (e *serviceTestEnv) addToCart(t *testing.T, userID, productID uint, quantity int) *CartView {
	t.Helper()
	view, err := e.cartService.UpsertItem(context.Background(), UpsertCartItemInput{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	})
	if err != nil {
		t.Fatalf("upsert cart item failed: %v", err)
	}
	return view
}

func (e *serviceTestEnv) countOrders(t *testing.T, userID uint) int64 {
	t.Helper()
	var count int64
	if err := e.db.Model(&models.Order{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count orders failed: %v", err)
	}
	return count
}

func (e *serviceTestEnv) cartLines(t *testing.T, userID uint) []models.CartItem {
	t.Helper()
	items, err := e.cartRepo.ListByUser(userID)
	if err != nil {
		t.Fatalf("list cart failed: %v", err)
	}
	return items
}

// serializeConnections 单连接访问 sqlite，并发用例中事务按序执行而不是返回 database is locked
func (e *serviceTestEnv) serializeConnections(t *testing.T) {
	t.Helper()
	sqlDB, err := e.db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
}

// fakeAuthorizer 模拟网关：同一幂等键返回同一流水号
type fakeAuthorizer struct {
	mu             sync.Mutex
	authorizeCalls int
	lastInput      AuthorizeInput
	authorizeErr   error
	waitForCtx     bool
	onAuthorize    func()
	refundErr      error
	refunds        []string
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, input AuthorizeInput) (*AuthorizeResult, error) {
	f.mu.Lock()
	f.authorizeCalls++
	f.lastInput = input
	hook := f.onAuthorize
	authorizeErr := f.authorizeErr
	waitForCtx := f.waitForCtx
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if waitForCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if authorizeErr != nil {
		return nil, authorizeErr
	}
	key := input.IdempotencyKey
	if len(key) > 24 {
		key = key[:24]
	}
	now := time.Now()
	return &AuthorizeResult{
		Provider:    constants.PaymentProviderStripe,
		ProviderRef: "pi_" + key,
		PaidAt:      &now,
	}, nil
}

func (f *fakeAuthorizer) Refund(ctx context.Context, providerRef, idempotencyKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, providerRef)
	return f.refundErr
}

func (f *fakeAuthorizer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authorizeCalls
}
